// Package language performs syntax-level inspection of GraphQL documents.
// It does not validate against a schema.
package language

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// DefaultCacheSize is used by NewInspector when size is not positive.
const DefaultCacheSize = 512

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// OperationInfo describes the operation a request selects.
type OperationInfo struct {
	Name string
	Type Operation
}

// Inspector resolves OperationInfo for query texts, caching parsed documents.
// It is safe for concurrent use.
type Inspector struct {
	docs *lru.Cache[string, *QueryDocument]
}

func NewInspector(size int) (*Inspector, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	docs, err := lru.New[string, *QueryDocument](size)
	if err != nil {
		return nil, err
	}
	return &Inspector{docs: docs}, nil
}

// Inspect parses query and picks the operation named operationName, or the
// only operation when the name is empty. Syntax errors are returned as-is;
// an unknown operation yields a zero Type.
func (i *Inspector) Inspect(query, operationName string) (OperationInfo, error) {
	doc, ok := i.docs.Get(query)
	if !ok {
		var err error
		doc, err = ParseQuery(query)
		if err != nil {
			return OperationInfo{Name: operationName}, err
		}
		i.docs.Add(query, doc)
	}
	op := doc.Operations.ForName(operationName)
	if op == nil && operationName == "" && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	}
	if op == nil {
		return OperationInfo{Name: operationName}, nil
	}
	return OperationInfo{Name: op.Name, Type: op.Operation}, nil
}

// Len reports the number of cached documents.
func (i *Inspector) Len() int { return i.docs.Len() }
