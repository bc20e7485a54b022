package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/emrgen/plm/internal/compress"
	"github.com/emrgen/plm/internal/metrics"
	"github.com/emrgen/plm/internal/storage"
	"github.com/google/uuid"
)

// Upload is one file received from a client.
type Upload struct {
	Filename string
	Mimetype string
	Content  io.Reader
}

// NewFileStore creates a FileStore writing through encoder.
func NewFileStore(blobs storage.Store, encoder compress.Compress) *FileStore {
	if encoder == nil {
		encoder = compress.NewNop()
	}

	return &FileStore{blobs: blobs, encoder: encoder}
}

// FileStore writes uploaded contents to the blob backend. Every row records the
// encoding its blob was written with, so the encoder can change between runs.
type FileStore struct {
	blobs   storage.Store
	encoder compress.Compress
}

// Encoding returns the name recorded on rows written by this store.
func (f *FileStore) Encoding() string {
	return f.encoder.Name()
}

// write encodes r and stores it under key, returning the decoded size.
func (f *FileStore) write(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	encoded, err := f.encoder.Encode(data)
	if err != nil {
		return 0, err
	}

	if _, err := f.blobs.Put(ctx, key, bytes.NewReader(encoded)); err != nil {
		return 0, err
	}
	metrics.BytesUploaded.Add(float64(len(data)))

	return int64(len(data)), nil
}

// read loads the blob at key and decodes it with the recorded encoding.
func (f *FileStore) read(ctx context.Context, key, encoding string) ([]byte, error) {
	decoder, err := compress.New(encoding)
	if err != nil {
		return nil, err
	}

	r, err := f.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return decoder.Decode(data)
}

// copy duplicates a blob byte for byte; the encoding is carried over by the caller.
func (f *FileStore) copy(ctx context.Context, src, dst string) error {
	_, err := storage.Copy(ctx, f.blobs, src, dst)
	return err
}

// storedName prefixes the base name of filename with a random hex id.
func storedName(filename string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + baseName(filename)
}

// baseName strips directories (either separator) from a client supplied filename.
func baseName(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "file"
	}

	return name
}

func revisionKey(revisionID uint, stored string) string {
	return fmt.Sprintf("revisions/%d/%s", revisionID, stored)
}

func partKey(code, stored string) string {
	return fmt.Sprintf("parts/%s/%s", code, stored)
}
