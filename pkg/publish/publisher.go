package publish

import (
	"context"

	"github.com/fulmenhq/mirrorengine/pkg/logger"
	"github.com/fulmenhq/mirrorengine/pkg/safeio"
	"github.com/go-git/go-git/v5/plumbing"
)

// Store is the remote file store the publisher writes to.
type Store interface {
	FileContent(ctx context.Context, path string) (string, bool)
	BlobSHA(ctx context.Context, path string) string
	UpdateFile(ctx context.Context, path, content, message, sha string) bool
}

// Comparator decides whether two texts are equivalent for publishing.
type Comparator interface {
	AreEqual(a, b string) bool
}

type exactComparator struct{}

func (exactComparator) AreEqual(a, b string) bool { return a == b }

// Result reports a publish attempt. Written is false when the remote copy
// was already equivalent.
type Result struct {
	Success bool
	Written bool
}

// Publisher writes content only when it differs from the published copy.
type Publisher struct {
	store Store
	cmp   Comparator
}

// NewPublisher creates a publisher. A nil comparator compares exactly.
func NewPublisher(store Store, cmp Comparator) *Publisher {
	if cmp == nil {
		cmp = exactComparator{}
	}
	return &Publisher{store: store, cmp: cmp}
}

// BlobHash returns the git blob id of content.
func BlobHash(content string) string {
	return plumbing.ComputeHash(plumbing.BlobObject, []byte(content)).String()
}

// PublishIfChanged writes content to path unless the remote copy is equivalent.
func (p *Publisher) PublishIfChanged(ctx context.Context, path, content, message string) Result {
	if _, err := safeio.CleanRelativePath(path); err != nil {
		logger.Error("Refusing to publish to unsafe path", logger.String("path", path), logger.Err(err))
		return Result{}
	}

	if current, ok := p.store.FileContent(ctx, path); ok && p.cmp.AreEqual(current, content) {
		logger.Info("File '" + path + "' not changed")
		return Result{Success: true}
	}

	sha := p.store.BlobSHA(ctx, path)
	if sha != "" && sha == BlobHash(content) {
		logger.Info("File '" + path + "' not changed")
		return Result{Success: true}
	}

	if !p.store.UpdateFile(ctx, path, content, message, sha) {
		logger.Error("Could not update '" + path + "'")
		return Result{}
	}
	logger.Info("File '" + path + "' updated")
	return Result{Success: true, Written: true}
}
