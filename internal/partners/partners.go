// Package partners loads trading-partner profiles that override the amount
// interpretation policy for individual senders.
//
// Profiles are kept in a YAML file:
//
//	partners:
//	  - sender_id: CENTSVENDOR
//	    name: Penny Wise LLC
//	    prefer: cents
//	    fallback: cents
//	    tolerance: "0.02"
//
// A profile is matched against the trimmed ISA06 sender ID, ignoring case.
package partners

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/internal/resolver"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
)

// Profile is one trading partner's overrides. Empty fields keep the
// configured default.
type Profile struct {
	SenderID  string `yaml:"sender_id" validate:"required,max=15"`
	Name      string `yaml:"name" validate:"max=60"`
	Prefer    string `yaml:"prefer" validate:"omitempty,oneof=dollars cents"`
	Fallback  string `yaml:"fallback" validate:"omitempty,oneof=dollars cents"`
	Tolerance string `yaml:"tolerance" validate:"omitempty,numeric"`
}

type document struct {
	Partners []Profile `yaml:"partners" validate:"dive"`
}

// Registry holds profiles keyed by normalized sender ID.
type Registry struct {
	profiles map[string]Profile
	logger   logger.Logger
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates a profile file.
func Load(path string, log logger.Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := errors.CodeFileNotFound
		if os.IsPermission(err) {
			code = errors.CodeFilePermission
		}
		return nil, errors.FileError(code, path, err)
	}
	reg, err := Parse(data, log)
	if err != nil {
		if e, ok := errors.AsEDIError(err); ok {
			return nil, e.WithContext("file_path", path)
		}
		return nil, err
	}
	return reg, nil
}

// Parse builds a registry from YAML.
func Parse(data []byte, log logger.Logger) (*Registry, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "partners", "yaml", err)
	}

	if err := validate.Struct(doc); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "partners", describe(err), err)
	}

	reg := &Registry{
		profiles: make(map[string]Profile, len(doc.Partners)),
		logger:   log.WithComponent("partners"),
	}
	for _, p := range doc.Partners {
		key := normalize(p.SenderID)
		if _, dup := reg.profiles[key]; dup {
			return nil, errors.ConfigurationError(errors.CodeConfigConflict, "partners.sender_id", p.SenderID, nil).
				WithSuggestion("list each sender only once")
		}
		if err := apply(p, resolver.DefaultConfig()).Validate(); err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "partners."+p.SenderID, p.Tolerance, err)
		}
		reg.profiles[key] = p
	}

	reg.logger.WithField("partners", len(reg.profiles)).Debug("Trading partner profiles loaded")
	return reg, nil
}

// Len returns the number of profiles.
func (r *Registry) Len() int {
	return len(r.profiles)
}

// SenderIDs returns the configured sender IDs in sorted order.
func (r *Registry) SenderIDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for _, p := range r.profiles {
		ids = append(ids, p.SenderID)
	}
	sort.Strings(ids)
	return ids
}

// Lookup finds the profile for an ISA06 sender ID.
func (r *Registry) Lookup(senderID string) (Profile, bool) {
	p, ok := r.profiles[normalize(senderID)]
	return p, ok
}

// PolicyFor returns base adjusted by the sender's profile, or base itself
// when the sender has none.
func (r *Registry) PolicyFor(senderID string, base *resolver.Config) *resolver.Config {
	p, ok := r.Lookup(senderID)
	if !ok {
		return base
	}
	return apply(p, base)
}

func apply(p Profile, base *resolver.Config) *resolver.Config {
	cfg := base.Clone()
	if i, ok := models.ParseInterpretation(p.Prefer); ok {
		cfg.Preferred = i
	}
	if i, ok := models.ParseInterpretation(p.Fallback); ok {
		cfg.Fallback = i
	}
	if p.Tolerance != "" {
		if t, err := decimal.NewFromString(p.Tolerance); err == nil {
			cfg.Tolerance = t
		}
	}
	return cfg
}

func normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
	}
	return strings.Join(msgs, "; ")
}
