package blob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps objects in process memory. It serves local development
// (BLOB_PROVIDER=memory) and tests; presigned URLs point at baseURL and
// carry an HMAC over key and expiry, checked by VerifyUpload.
type MemoryStore struct {
	mu         sync.RWMutex
	baseURL    string
	signingKey []byte
	objects    map[string]Object
}

type Object struct {
	Data        []byte
	ContentType string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	signingKey := make([]byte, 32)
	_, _ = rand.Read(signingKey)
	return &MemoryStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
		objects:    make(map[string]Object),
	}
}

func (m *MemoryStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, m.signingKey)
	mac.Write([]byte(key + "|" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyUpload reports whether signature was issued by PresignUpload for
// key and expires, and the URL has not expired at now.
func (m *MemoryStore) VerifyUpload(key, expires, signature string, now time.Time) bool {
	at, err := time.Parse(time.RFC3339, expires)
	if err != nil || now.After(at) {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(m.sign(key, expires)))
}

func (m *MemoryStore) PresignUpload(_ context.Context, key, contentType string, expiry time.Duration) (string, error) {
	q := url.Values{}
	q.Set("contentType", contentType)
	expires := time.Now().Add(expiry).UTC().Format(time.RFC3339)
	q.Set("expires", expires)
	q.Set("signature", m.sign(key, expires))
	return m.PublicURL(key) + "?" + q.Encode(), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: buf.Bytes(), ContentType: contentType}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return m.baseURL + "/" + (&url.URL{Path: key}).EscapedPath()
}

// Get returns a stored object.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys lists stored keys in order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
