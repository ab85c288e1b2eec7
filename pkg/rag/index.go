// Package rag provides the per-tenant vector index used by the specialist
// handlers for document retrieval. Every query carries a company_id metadata
// filter so tenant isolation holds even on shared infrastructure.
package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/conversia-ai/conversia/pkg/config"
)

// Document is a retrieved or indexed document.
type Document struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float32           `json:"similarity,omitempty"`
}

// Retriever is the search boundary consumed by agents.
type Retriever interface {
	// Search returns the top-k documents for the tenant. The implementation
	// must enforce the company_id filter; filter adds further metadata
	// constraints (e.g. document_type).
	Search(ctx context.Context, tenant *config.TenantConfig, query string, k int, filter map[string]string) ([]Document, error)
}

// Index is a chromem-backed Retriever with per-tenant collections.
type Index struct {
	db        *chromem.DB
	embedding chromem.EmbeddingFunc

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// NewIndex opens (or creates) the vector index. With a persist path the index
// survives restarts; without one it is memory-only (tests).
func NewIndex(cfg config.IndexConfig, llmCfg config.LLMConfig) (*Index, error) {
	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.PersistPath, "index.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("open persistent index: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	keyEnv := llmCfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	embeddingModel := llmCfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(chromem.EmbeddingModelOpenAI3Small)
	}

	var embedding chromem.EmbeddingFunc
	if llmCfg.BaseURL != "" {
		embedding = chromem.NewEmbeddingFuncOpenAICompat(llmCfg.BaseURL, os.Getenv(keyEnv), embeddingModel, nil)
	} else {
		embedding = chromem.NewEmbeddingFuncOpenAI(os.Getenv(keyEnv), chromem.EmbeddingModelOpenAI(embeddingModel))
	}

	return &Index{
		db:          db,
		embedding:   embedding,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// NewIndexWithEmbedding creates a memory-only index with a custom embedding
// function. Used by tests to avoid network calls.
func NewIndexWithEmbedding(embedding chromem.EmbeddingFunc) *Index {
	return &Index{
		db:          chromem.NewDB(),
		embedding:   embedding,
		collections: make(map[string]*chromem.Collection),
	}
}

func (i *Index) collection(tenant *config.TenantConfig) (*chromem.Collection, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if c, ok := i.collections[tenant.VectorIndexName]; ok {
		return c, nil
	}
	c, err := i.db.GetOrCreateCollection(tenant.VectorIndexName, nil, i.embedding)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", tenant.VectorIndexName, err)
	}
	i.collections[tenant.VectorIndexName] = c
	return c, nil
}

// Search returns the top-k documents matching the query for the tenant.
func (i *Index) Search(ctx context.Context, tenant *config.TenantConfig, query string, k int, filter map[string]string) ([]Document, error) {
	c, err := i.collection(tenant)
	if err != nil {
		return nil, err
	}

	where := map[string]string{"company_id": tenant.CompanyID}
	for key, val := range filter {
		where[key] = val
	}

	// chromem rejects nResults larger than the collection size.
	if count := c.Count(); count < k {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	results, err := c.Query(ctx, query, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", tenant.VectorIndexName, err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, Document{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		})
	}
	return docs, nil
}

// Add indexes a document for the tenant. The company_id metadata field is
// forced to the tenant's ID regardless of what the caller supplied.
func (i *Index) Add(ctx context.Context, tenant *config.TenantConfig, doc Document) error {
	c, err := i.collection(tenant)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]string{}
	}
	doc.Metadata["company_id"] = tenant.CompanyID
	if err := c.AddDocument(ctx, chromem.Document{
		ID:       doc.ID,
		Content:  doc.Content,
		Metadata: doc.Metadata,
	}); err != nil {
		return fmt.Errorf("add document %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes a document from the tenant's collection.
func (i *Index) Delete(ctx context.Context, tenant *config.TenantConfig, id string) error {
	c, err := i.collection(tenant)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, map[string]string{"company_id": tenant.CompanyID}, nil, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// Count returns the number of documents in the tenant's collection.
func (i *Index) Count(tenant *config.TenantConfig) (int, error) {
	c, err := i.collection(tenant)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}
