package search

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

var ErrClosed = errors.New("search engine closed")

// Doc 可检索的录音文档
type Doc struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ScriptText  string `json:"script_text"`
}

// Hit 一条命中结果
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Engine 录音全文索引：按标题/描述/提示文本检索，限定在所有者范围内
type Engine interface {
	Index(ctx context.Context, doc Doc) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, userID, query string, limit int) ([]Hit, error)
	Close() error
}

type bleveEngine struct {
	index  bleve.Index
	mu     sync.RWMutex
	closed bool
}

func buildMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	owner := bleve.NewTextFieldMapping()
	owner.Analyzer = keyword.Name // user_id 精确匹配
	doc.AddFieldMappingsAt("user_id", owner)

	text := bleve.NewTextFieldMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("script_text", text)

	m.DefaultMapping = doc
	return m
}

// New 打开或创建索引
func New(path string) (Engine, error) {
	var idx bleve.Index
	if _, err := os.Stat(path); err == nil {
		i, e := bleve.Open(path)
		if e != nil {
			return nil, e
		}
		idx = i
	} else if os.IsNotExist(err) {
		i, e := bleve.New(path, buildMapping())
		if e != nil {
			return nil, e
		}
		idx = i
	} else {
		return nil, err
	}
	return &bleveEngine{index: idx}, nil
}

// NewInMemory 内存索引（测试用）
func NewInMemory() (Engine, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, err
	}
	return &bleveEngine{index: idx}, nil
}

func (e *bleveEngine) guard() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *bleveEngine) Index(ctx context.Context, doc Doc) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.index.Index(doc.ID, doc)
}

func (e *bleveEngine) Delete(ctx context.Context, id string) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.index.Delete(id)
}

func (e *bleveEngine) Search(ctx context.Context, userID, query string, limit int) ([]Hit, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	match := bleve.NewMatchQuery(query)
	owner := bleve.NewTermQuery(userID)
	owner.SetField("user_id")
	q := bleve.NewConjunctionQuery(match, owner)

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

func (e *bleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}
