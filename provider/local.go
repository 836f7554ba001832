package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// ensure interface is implemented
var _ Provider = (*LocalProvider)(nil)

// LocalProvider implements the Provider interface on top of a billy
// filesystem, the host filesystem for NewLocalProvider.
type LocalProvider struct {
	fs            billy.Filesystem
	change        billy.Change
	preserveOwner bool
}

// NewLocalProvider creates a new LocalProvider rooted at basePath.
func NewLocalProvider(basePath string) *LocalProvider {
	return &LocalProvider{
		fs:     osfs.New(basePath),
		change: hostChange{root: basePath},
	}
}

// NewFilesystemProvider creates a provider over any billy filesystem, such as
// memfs in tests. Metadata is only applied when fs implements billy.Change.
func NewFilesystemProvider(fs billy.Filesystem) *LocalProvider {
	change, _ := fs.(billy.Change)
	return &LocalProvider{fs: fs, change: change}
}

// WithPreserveOwner makes written files take the owner of their source.
// It usually requires elevated privileges.
func (p *LocalProvider) WithPreserveOwner(preserve bool) *LocalProvider {
	p.preserveOwner = preserve
	return p
}

// Root returns the directory the provider is rooted at.
func (p *LocalProvider) Root() string {
	return p.fs.Root()
}

func (p *LocalProvider) Stat(ctx context.Context, path string) (FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	info, err := p.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return WrapOSFileInfo(info), nil
}

func (p *LocalProvider) List(ctx context.Context, path string) ([]FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := p.fs.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, WrapOSFileInfo(entry))
	}
	return infos, nil
}

func (p *LocalProvider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := p.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func (p *LocalProvider) OpenWrite(ctx context.Context, path string, metadata FileInfo) (io.WriteCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Create parent directories if they don't exist
	if dir := filepath.Dir(path); dir != "." {
		if err := p.fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	file, err := p.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	return &localWriteCloser{
		File:     file,
		provider: p,
		path:     path,
		metadata: metadata,
	}, nil
}

func (p *LocalProvider) Remove(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := p.fs.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// localWriteCloser applies the source metadata once the file is closed,
// since writing to the file updates its mtime.
type localWriteCloser struct {
	billy.File
	provider *LocalProvider
	path     string
	metadata FileInfo
}

func (l *localWriteCloser) Close() error {
	if err := l.File.Close(); err != nil {
		return err
	}

	// Metadata is best effort, the content is already in place
	_ = ApplyMetadata(l.provider.change, l.path, l.metadata, l.provider.preserveOwner)
	return nil
}
