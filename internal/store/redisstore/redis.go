// Package redisstore is a store.Store kept in Redis so several server
// replicas can share ingested documents.
//
// Layout, with the default "freightdoc" prefix:
//
//	freightdoc:docs               ZSET   document id scored by created_at (ms)
//	freightdoc:doc:{id}           HASH   document fields
//	freightdoc:chunks:{id}:text   HASH   chunk index -> text
//	freightdoc:chunks:{id}:vec    HASH   chunk index -> little-endian float32 blob
package redisstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dgallion1/freightdoc/internal/store"
)

const (
	fieldFilename       = "filename"
	fieldText           = "text"
	fieldContentHash    = "content_hash"
	fieldNumChunks      = "num_chunks"
	fieldEmbeddingModel = "embedding_model"
	fieldCreatedAt      = "created_at"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

type Store struct {
	client *redis.Client
	prefix string
}

var _ store.Store = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "freightdoc"
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) docsKey() string            { return s.prefix + ":docs" }
func (s *Store) docKey(id string) string    { return s.prefix + ":doc:" + id }
func (s *Store) textKey(id string) string   { return s.prefix + ":chunks:" + id + ":text" }
func (s *Store) vectorKey(id string) string { return s.prefix + ":chunks:" + id + ":vec" }

func (s *Store) PutDocument(ctx context.Context, doc store.Document) error {
	created := doc.CreatedAt.UnixMilli()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docKey(doc.ID), map[string]any{
			fieldFilename:       doc.Filename,
			fieldText:           doc.Text,
			fieldContentHash:    doc.ContentHash,
			fieldNumChunks:      doc.NumChunks,
			fieldEmbeddingModel: doc.EmbeddingModel,
			fieldCreatedAt:      created,
		})
		pipe.ZAdd(ctx, s.docsKey(), redis.Z{Score: float64(created), Member: doc.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (store.Document, error) {
	fields, err := s.client.HGetAll(ctx, s.docKey(id)).Result()
	if err != nil {
		return store.Document{}, fmt.Errorf("reading document: %w", err)
	}
	if len(fields) == 0 {
		return store.Document{}, fmt.Errorf("get %s: %w", id, store.ErrNotFound)
	}
	return parseDocument(id, fields)
}

func parseDocument(id string, fields map[string]string) (store.Document, error) {
	numChunks, err := strconv.Atoi(fields[fieldNumChunks])
	if err != nil {
		return store.Document{}, fmt.Errorf("document %s: bad %s: %w", id, fieldNumChunks, err)
	}
	created, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return store.Document{}, fmt.Errorf("document %s: bad %s: %w", id, fieldCreatedAt, err)
	}
	return store.Document{
		ID:             id,
		Filename:       fields[fieldFilename],
		Text:           fields[fieldText],
		ContentHash:    fields[fieldContentHash],
		NumChunks:      numChunks,
		EmbeddingModel: fields[fieldEmbeddingModel],
		CreatedAt:      time.UnixMilli(created).UTC(),
	}, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]store.Document, error) {
	ids, err := s.client.ZRevRange(ctx, s.docsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.docKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reading documents: %w", err)
	}

	docs := make([]store.Document, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		d, err := parseDocument(id, fields)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	store.SortDocuments(docs)
	return docs, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(id), s.textKey(id), s.vectorKey(id))
		pipe.ZRem(ctx, s.docsKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, docID string, chunks []store.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make(map[string]any, len(chunks))
	vecs := make(map[string]any, len(chunks))
	for _, c := range chunks {
		field := strconv.Itoa(c.Index)
		texts[field] = c.Text
		vecs[field] = encodeVector(c.Vector)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.textKey(docID), texts)
		pipe.HSet(ctx, s.vectorKey(docID), vecs)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upserting chunks: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, docID string, vector []float32, k int) ([]store.Hit, error) {
	pipe := s.client.Pipeline()
	textCmd := pipe.HGetAll(ctx, s.textKey(docID))
	vecCmd := pipe.HGetAll(ctx, s.vectorKey(docID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}

	texts, vecs := textCmd.Val(), vecCmd.Val()
	chunks := make([]store.Chunk, 0, len(texts))
	for field, text := range texts {
		idx, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("chunk field %q: %w", field, err)
		}
		chunks = append(chunks, store.Chunk{
			Index:  idx,
			Text:   text,
			Vector: decodeVector([]byte(vecs[field])),
		})
	}
	return store.Rank(chunks, vector, k), nil
}

func (s *Store) Count(ctx context.Context, docID string) (int, error) {
	n, err := s.client.HLen(ctx, s.textKey(docID)).Result()
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return int(n), nil
}

func (s *Store) DeleteVectors(ctx context.Context, docID string) error {
	if err := s.client.Del(ctx, s.textKey(docID), s.vectorKey(docID)).Err(); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
