package preferences

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// filePermissions restricts the preferences file to its owner.
const filePermissions = 0o600

// FileStore persists preferences as a JSON document of scopes:
//
//	{"/": {"destination": "5512345678"}, "/work": {...}}
//
// The document is encoded with protojson over structpb so it stays a plain
// JSON object on disk.
type FileStore struct {
	// path is the filesystem location of the JSON document.
	path string
	// mu serializes read-modify-write cycles.
	mu sync.Mutex
}

// NewFileStore creates a store backed by the file at path. The file is
// created on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: filepath.Clean(path),
	}
}

// Get returns the value stored under key.
func (s *FileStore) Get(_ context.Context, key string, opts ...Option) (string, bool, error) {
	scope, err := resolve(key, opts)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}

	scoped := doc.GetFields()[scope].GetStructValue()
	if scoped == nil {
		return "", false, nil
	}

	value, ok := scoped.GetFields()[key]
	if !ok {
		return "", false, nil
	}

	return value.GetStringValue(), true, nil
}

// Set stores value under key and rewrites the document.
func (s *FileStore) Set(_ context.Context, key, value string, opts ...Option) error {
	scope, err := resolve(key, opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	scoped := doc.GetFields()[scope].GetStructValue()
	if scoped == nil {
		scoped = &structpb.Struct{Fields: make(map[string]*structpb.Value)}
		doc.Fields[scope] = structpb.NewStructValue(scoped)
	}

	if scoped.Fields == nil {
		scoped.Fields = make(map[string]*structpb.Value)
	}

	scoped.Fields[key] = structpb.NewStringValue(value)

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	if err = os.WriteFile(s.path, data, filePermissions); err != nil {
		return fmt.Errorf("write preferences file: %w", err)
	}

	return nil
}

// Close is a no-op; every Set is flushed immediately.
func (s *FileStore) Close() error {
	return nil
}

// load reads the document, returning an empty one if the file is missing.
func (s *FileStore) load() (*structpb.Struct, error) {
	doc := &structpb.Struct{Fields: make(map[string]*structpb.Value)}

	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}

		return nil, fmt.Errorf("read preferences file: %w", err)
	}

	if err = protojson.Unmarshal(contents, doc); err != nil {
		return nil, fmt.Errorf("decode preferences file: %w", err)
	}

	if doc.Fields == nil {
		doc.Fields = make(map[string]*structpb.Value)
	}

	return doc, nil
}
