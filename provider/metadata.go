package provider

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5"
)

// UnixFileInfo extends FileInfo with Unix-specific metadata
type UnixFileInfo interface {
	FileInfo
	UID() uint32
	GID() uint32
	Mode() os.FileMode
}

type localFileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
	mode    os.FileMode
}

func (l *localFileInfo) Name() string       { return l.name }
func (l *localFileInfo) Size() int64        { return l.size }
func (l *localFileInfo) IsDir() bool        { return l.isDir }
func (l *localFileInfo) ModTime() time.Time { return l.modTime }
func (l *localFileInfo) Mode() os.FileMode  { return l.mode }

// unixFileInfo adds ownership to a localFileInfo
type unixFileInfo struct {
	*localFileInfo
	uid uint32
	gid uint32
}

func (u *unixFileInfo) UID() uint32 { return u.uid }
func (u *unixFileInfo) GID() uint32 { return u.gid }

// WrapOSFileInfo converts an os.FileInfo into a FileInfo. Ownership is only
// available when the filesystem exposes a syscall.Stat_t, in which case the
// result also satisfies UnixFileInfo.
func WrapOSFileInfo(info os.FileInfo) FileInfo {
	base := &localFileInfo{
		name:    info.Name(),
		size:    info.Size(),
		isDir:   info.IsDir(),
		modTime: info.ModTime(),
		mode:    info.Mode().Perm(),
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || stat == nil {
		return base
	}

	return &unixFileInfo{
		localFileInfo: base,
		uid:           stat.Uid,
		gid:           stat.Gid,
	}
}

// hostChange implements billy.Change for paths under a host directory.
type hostChange struct {
	root string
}

func (h hostChange) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(filepath.Join(h.root, name), mode)
}

func (h hostChange) Lchown(name string, uid, gid int) error {
	return os.Lchown(filepath.Join(h.root, name), uid, gid)
}

func (h hostChange) Chown(name string, uid, gid int) error {
	return os.Chown(filepath.Join(h.root, name), uid, gid)
}

func (h hostChange) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return os.Chtimes(filepath.Join(h.root, name), atime, mtime)
}

// ApplyMetadata copies permissions, modification time and, when
// preserveOwner is set, ownership from info onto the file at path.
// A nil change leaves the file untouched.
func ApplyMetadata(change billy.Change, path string, info FileInfo, preserveOwner bool) error {
	if change == nil || info == nil {
		return nil
	}

	var errs []error
	if m, ok := info.(interface{ Mode() os.FileMode }); ok && m.Mode() != 0 {
		errs = append(errs, change.Chmod(path, m.Mode()))
	}
	if u, ok := info.(UnixFileInfo); ok && preserveOwner {
		errs = append(errs, change.Chown(path, int(u.UID()), int(u.GID())))
	}
	if !info.ModTime().IsZero() {
		errs = append(errs, change.Chtimes(path, time.Now(), info.ModTime()))
	}
	return errors.Join(errs...)
}
