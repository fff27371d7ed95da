package mailbox

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
)

// Dir is a mailbox on the local filesystem.
type Dir struct {
	inbox      string
	outbox     string
	archive    string
	extensions []string
	logger     logger.Logger
}

// NewDir creates a directory mailbox. An empty outbox selects ack_997
// inside the inbox; handled documents are archived to processed inside
// the inbox.
func NewDir(inbox, outbox string, log logger.Logger) *Dir {
	if outbox == "" {
		outbox = filepath.Join(inbox, DefaultOutbox)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Dir{
		inbox:      inbox,
		outbox:     outbox,
		archive:    filepath.Join(inbox, DefaultArchive),
		extensions: DefaultExtensions,
		logger:     log.WithComponent("mailbox"),
	}
}

// WithExtensions replaces the inbox extension filter. No extensions lists
// every regular file.
func (d *Dir) WithExtensions(exts ...string) *Dir {
	d.extensions = exts
	return d
}

func (d *Dir) String() string {
	return "dir:" + d.inbox
}

// Inbox returns the inbox directory.
func (d *Dir) Inbox() string { return d.inbox }

// Outbox returns the outbox directory.
func (d *Dir) Outbox() string { return d.outbox }

func (d *Dir) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.inbox)
	if err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, d.inbox, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !hasExtension(e.Name(), d.extensions) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	d.logger.WithFields(logger.Fields{"inbox": d.inbox, "documents": len(names)}).Debug("Inbox listed")
	return names, ctx.Err()
}

func (d *Dir) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.path(d.inbox, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		code := errors.CodeFileNotFound
		if os.IsPermission(err) {
			code = errors.CodeFilePermission
		}
		return nil, errors.FileError(code, p, err)
	}
	return data, nil
}

// Deliver writes through a temporary file so readers never see a partial
// document.
func (d *Dir) Deliver(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.path(d.outbox, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.FileError(errors.CodeDirectoryError, filepath.Dir(p), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".deliver-*")
	if err != nil {
		return errors.FileError(errors.CodeWriteFailed, p, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.FileError(errors.CodeWriteFailed, p, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.FileError(errors.CodeWriteFailed, p, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.FileError(errors.CodeWriteFailed, p, err)
	}

	d.logger.WithFields(logger.Fields{"path": p, "bytes": len(data)}).Info("Document delivered")
	return nil
}

// Archive renames an inbox document into the archive directory.
func (d *Dir) Archive(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := d.path(d.inbox, name)
	if err != nil {
		return err
	}
	dst, err := d.path(d.archive, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.FileError(errors.CodeDirectoryError, filepath.Dir(dst), err)
	}
	if err := os.Rename(src, dst); err != nil {
		code := errors.CodeWriteFailed
		if os.IsNotExist(err) {
			code = errors.CodeFileNotFound
		}
		return errors.FileError(code, src, err)
	}

	d.logger.WithFields(logger.Fields{"from": src, "to": dst}).Info("Document archived")
	return nil
}

func (d *Dir) path(root, name string) (string, error) {
	n, err := cleanName(name)
	if err != nil {
		return "", errors.FileError(errors.CodeFilePermission, name, err)
	}
	return filepath.Join(root, filepath.FromSlash(n)), nil
}
