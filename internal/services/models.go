package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/events"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/store"
)

var modelUpdateFields = []string{
	"name", "description", "status", "progress", "errorMessage", "modelUrl", "thumbnailUrl", "completedAt",
}

type ModelService struct {
	tables *store.Tables
	blobs  blob.Store
	events events.Publisher
	log    *logger.Logger
	now    func() time.Time
}

func NewModelService(tables *store.Tables, blobs blob.Store, publisher events.Publisher, log *logger.Logger) *ModelService {
	return &ModelService{
		tables: tables,
		blobs:  blobs,
		events: publisher,
		log:    log,
		now:    time.Now,
	}
}

// List returns the caller's models, newest first.
func (s *ModelService) List(ctx context.Context, userID string) ([]models.TrainingModel, error) {
	docs, err := s.tables.Models.QueryByIndex(ctx, store.IndexUserID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	store.NewestFirst(docs)
	return store.DecodeAll[models.TrainingModel](docs)
}

func (s *ModelService) Get(ctx context.Context, userID, id string) (models.TrainingModel, error) {
	doc, err := ownedRecord(ctx, s.tables.Models, id, userID, msgModelNotFound)
	if err != nil {
		return models.TrainingModel{}, err
	}
	var model models.TrainingModel
	err = store.Decode(doc, &model)
	return model, err
}

func (s *ModelService) Create(ctx context.Context, userID string, req models.CreateModelRequest) (models.TrainingModel, error) {
	name := strings.TrimSpace(req.Name)
	trigger := strings.TrimSpace(req.TriggerWord)
	description := strings.TrimSpace(req.Description)

	errs := fieldErrors{}
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		errs["name"] = "must be between 1 and 100 characters"
	}
	if n := utf8.RuneCountInString(trigger); n < 1 || n > 50 {
		errs["triggerWord"] = "must be between 1 and 50 characters"
	} else if strings.ContainsFunc(trigger, unicode.IsSpace) {
		errs["triggerWord"] = "must not contain whitespace"
	}
	if utf8.RuneCountInString(description) > 500 {
		errs["description"] = "must be at most 500 characters"
	}
	if err := errs.err(); err != nil {
		return models.TrainingModel{}, err
	}

	cfg := models.DefaultTrainingConfig()
	if req.TrainingConfig != nil {
		cfg = req.TrainingConfig.WithDefaults()
	}

	doc, err := store.Encode(models.TrainingModel{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		Description:    description,
		Status:         models.StatusPending,
		TriggerWord:    trigger,
		ImageCount:     0,
		TrainingConfig: cfg,
	})
	if err != nil {
		return models.TrainingModel{}, err
	}
	created, err := s.tables.Models.Create(ctx, doc)
	if err != nil {
		return models.TrainingModel{}, fmt.Errorf("failed to create model: %w", err)
	}

	var model models.TrainingModel
	if err := store.Decode(created, &model); err != nil {
		return models.TrainingModel{}, err
	}
	publish(ctx, s.events, s.log, events.UserChannel(userID), events.EventModelCreated, events.ModelStatusPayload(model))
	return model, nil
}

// Update applies the whitelisted fields of body. Status may only move
// forward; terminal states are final.
func (s *ModelService) Update(ctx context.Context, userID, id string, body store.Document) (models.TrainingModel, error) {
	fields := pick(body, modelUpdateFields...)
	if len(fields) == 0 {
		return models.TrainingModel{}, noValidFields()
	}

	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return models.TrainingModel{}, err
	}
	update, err := s.modelUpdate(current, fields)
	if err != nil {
		return models.TrainingModel{}, err
	}

	doc, err := s.tables.Models.Update(ctx, id, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.TrainingModel{}, apperror.NotFound(msgModelNotFound)
		}
		return models.TrainingModel{}, fmt.Errorf("failed to update model: %w", err)
	}
	var model models.TrainingModel
	if err := store.Decode(doc, &model); err != nil {
		return models.TrainingModel{}, err
	}

	if model.Status != current.Status {
		publishStatus(ctx, s.events, s.log, model)
	}
	return model, nil
}

func (s *ModelService) modelUpdate(current models.TrainingModel, fields store.Document) (store.Document, error) {
	update := store.Document{}
	errs := fieldErrors{}

	stringField := func(name string, max int, allowEmpty bool) {
		v, ok := fields[name]
		if !ok {
			return
		}
		str, isString := v.(string)
		str = strings.TrimSpace(str)
		n := utf8.RuneCountInString(str)
		switch {
		case !isString:
			errs[name] = "must be a string"
		case !allowEmpty && n == 0:
			errs[name] = "must not be empty"
		case n > max:
			errs[name] = fmt.Sprintf("must be at most %d characters", max)
		default:
			update[name] = str
		}
	}
	urlField := func(name string) {
		v, ok := fields[name]
		if !ok {
			return
		}
		str, isString := v.(string)
		str = strings.TrimSpace(str)
		if !isString || (str != "" && !isHTTPURL(str)) {
			errs[name] = "must be an http or https URL"
			return
		}
		update[name] = str
	}

	stringField("name", 100, false)
	stringField("description", 500, true)
	stringField("errorMessage", 2000, true)
	urlField("modelUrl")
	urlField("thumbnailUrl")

	if v, ok := fields["progress"]; ok {
		n, isNumber := v.(float64)
		if !isNumber || n < 0 || n > 100 || n != math.Trunc(n) {
			errs["progress"] = "must be an integer between 0 and 100"
		} else {
			update["progress"] = int(n)
		}
	}
	if v, ok := fields["completedAt"]; ok {
		str, isString := v.(string)
		if _, err := time.Parse(time.RFC3339, str); !isString || err != nil {
			errs["completedAt"] = "must be an RFC 3339 timestamp"
		} else {
			update["completedAt"] = str
		}
	}

	if v, ok := fields["status"]; ok {
		str, _ := v.(string)
		next := models.ModelStatus(str)
		switch {
		case !next.Valid():
			errs["status"] = "must be one of pending, training, completed, failed"
		case !current.Status.CanTransitionTo(next):
			return nil, apperror.Validation(
				fmt.Sprintf("Cannot change status from %s to %s", current.Status, next), nil,
			).WithCode(CodeInvalidStatusTransition)
		default:
			update["status"] = string(next)
			if next == models.StatusCompleted && next != current.Status {
				if _, set := update["completedAt"]; !set {
					update["completedAt"] = store.Stamp(s.now())
				}
			}
		}
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return update, nil
}

// Delete removes the model and its training images, then the images' blobs.
func (s *ModelService) Delete(ctx context.Context, userID, id string) error {
	model, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	images, err := s.tables.TrainingImages.QueryByIndex(ctx, store.IndexModelID, id)
	if err != nil {
		return fmt.Errorf("failed to list training images: %w", err)
	}
	keys := make([]string, 0, len(images)+1)
	for _, img := range images {
		if err := s.tables.TrainingImages.Delete(ctx, img.String("id")); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to delete training image: %w", err)
		}
		if key := img.String("key"); key != "" {
			keys = append(keys, key)
		}
	}

	if err := s.tables.Models.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound(msgModelNotFound)
		}
		return fmt.Errorf("failed to delete model: %w", err)
	}

	if model.TrainingJobID != "" {
		keys = append(keys, TrainingDataKey(userID, id))
	}
	deleteBlobs(ctx, s.blobs, s.log, keys)

	payload := events.ModelDeletedPayload(id, len(images))
	publish(ctx, s.events, s.log, events.ModelChannel(id), events.EventModelDeleted, payload)
	publish(ctx, s.events, s.log, events.UserChannel(userID), events.EventModelDeleted, payload)
	return nil
}
