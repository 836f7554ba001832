package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/franksops/datarouter/logctx"
	"github.com/franksops/datarouter/provider"
)

// DefaultExtensions are the video containers picked up by default.
var DefaultExtensions = []string{".mp4", ".avi", ".mkv", ".mpeg"}

// TextExtension is the optional extra extension for plain text files.
const TextExtension = ".txt"

// sniffLen is the number of leading bytes inspected when sniffing content.
const sniffLen = 262

// Candidate is a file selected for transfer.
type Candidate struct {
	// SourcePath is the file path to read from the source provider.
	SourcePath string

	// DestinationPath is the file path to write to the destination provider.
	DestinationPath string

	// FileInfo holds the metadata of the source file at discovery time.
	FileInfo provider.FileInfo
}

// WalkOptions selects which files a Walker keeps.
type WalkOptions struct {
	// Extensions are matched case-insensitively against file names.
	Extensions []string
	// Recursive descends into subdirectories, keeping their layout at the
	// destination.
	Recursive bool
	// Sniff confirms the extension by looking at the file content.
	Sniff bool
}

// Walker selects the files of a source directory that should be moved to a
// destination directory. Files already present at the destination are skipped.
type Walker struct {
	SourceProvider provider.Provider
	DestProvider   provider.Provider
	opts           WalkOptions
	exts           map[string]struct{}
}

// NewWalker creates a walker. Empty extensions mean DefaultExtensions.
func NewWalker(src, dst provider.Provider, opts WalkOptions) *Walker {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return &Walker{
		SourceProvider: src,
		DestProvider:   dst,
		opts:           opts,
		exts:           exts,
	}
}

// Walk lists sourcePath iteratively (stack based) and returns the files to
// transfer and the ones skipped because they already exist at destPath.
func (w *Walker) Walk(ctx context.Context, sourcePath, destPath string) (selected, skipped []Candidate, err error) {
	logger := logctx.LoggerFromContext(ctx)

	stat, err := w.SourceProvider.Stat(ctx, sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat source %s: %w", sourcePath, err)
	}
	if !stat.IsDir() {
		return nil, nil, fmt.Errorf("source %s: %w", sourcePath, ErrNotDirectory)
	}

	stack := []string{""}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		// Pop item
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dir := joinRel(sourcePath, rel)
		entries, err := w.SourceProvider.List(ctx, dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list directory %s: %w", dir, err)
		}

		for _, entry := range entries {
			entryRel := joinRel(rel, entry.Name())

			if entry.IsDir() {
				if w.opts.Recursive {
					stack = append(stack, entryRel)
				}
				continue
			}

			ext, ok := w.match(entry.Name())
			if !ok {
				continue
			}

			c := Candidate{
				SourcePath:      joinRel(sourcePath, entryRel),
				DestinationPath: joinRel(destPath, entryRel),
				FileInfo:        entry,
			}

			if w.opts.Sniff {
				ok, err := w.sniff(ctx, c.SourcePath, ext)
				if err != nil {
					return nil, nil, err
				}
				if !ok {
					logger.Debug("content does not match extension", "file", c.SourcePath)
					continue
				}
			}

			exists, err := w.exists(ctx, c.DestinationPath)
			if err != nil {
				return nil, nil, err
			}
			if exists {
				logger.Debug("file already exists in the target folder", "file", entry.Name(), "target", destPath)
				skipped = append(skipped, c)
				continue
			}

			selected = append(selected, c)
		}
	}

	return selected, skipped, nil
}

func (w *Walker) match(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := w.exts[ext]
	return ext, ok
}

func (w *Walker) exists(ctx context.Context, path string) (bool, error) {
	_, err := w.DestProvider.Stat(ctx, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check target %s: %w", path, err)
	}
}

// sniff checks the leading bytes of a file against its extension: text files
// must not carry a known binary signature, everything else must be a video.
func (w *Walker) sniff(ctx context.Context, path, ext string) (bool, error) {
	r, err := w.SourceProvider.OpenRead(ctx, path)
	if err != nil {
		return false, err
	}
	defer r.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	head = head[:n]

	if ext == TextExtension {
		kind, _ := filetype.Match(head)
		return kind == filetype.Unknown, nil
	}
	return filetype.IsVideo(head), nil
}

func joinRel(base, name string) string {
	switch {
	case base == "" || base == ".":
		return name
	case name == "":
		return base
	default:
		return filepath.Join(base, name)
	}
}
