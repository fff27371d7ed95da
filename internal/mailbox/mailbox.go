// Package mailbox moves documents between a trading partner's inbox and
// outbox. Invoices are listed and fetched from the inbox and archived once
// answered; acknowledgments are delivered to the outbox.
package mailbox

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Mailbox exchanges documents with a trading partner.
type Mailbox interface {
	// List returns inbox document names in sorted order.
	List(ctx context.Context) ([]string, error)
	// Fetch reads one inbox document.
	Fetch(ctx context.Context, name string) ([]byte, error)
	// Deliver writes one document to the outbox.
	Deliver(ctx context.Context, name string, data []byte) error
	// Archive moves one inbox document out of the inbox so later listings
	// skip it.
	Archive(ctx context.Context, name string) error
	// String describes the mailbox for logs.
	String() string
}

// DefaultExtensions are the inbox file extensions picked up by List.
var DefaultExtensions = []string{".edi", ".x12", ".txt", ".810"}

// DefaultOutbox is the outbox location relative to the inbox.
const DefaultOutbox = "ack_997"

// DefaultArchive holds handled inbox documents, relative to the inbox.
const DefaultArchive = "processed"

// cleanName rejects names that would leave the mailbox.
func cleanName(name string) (string, error) {
	n := strings.ReplaceAll(name, "\\", "/")
	if n == "" || strings.HasPrefix(n, "/") {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	n = path.Clean(n)
	if n == "." || n == ".." || strings.HasPrefix(n, "../") {
		return "", fmt.Errorf("document name %q escapes the mailbox", name)
	}
	return n, nil
}

func hasExtension(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
