// ============================================================================
// Job Record Parser
// ============================================================================
//
// Package: internal/parser
// File: parser.go
// Purpose: Turn one raw job result into an immutable types.JobRecord
//
// Command shape recognized:
//   <entrypoint> <type-token> <application> <target>:<toolchain> [extra...]
//
//   type-token   [a-z_]+
//   application  [a-zA-Z0-9/_-]+
//   target       [a-zA-Z0-9_-]+
//   toolchain    [a-zA-Z0-9_-]+
//
// Anything else is an opaque job: Type falls back to Name and the
// structured fields stay empty. Parse never fails.
//
// ============================================================================

package parser

import (
	"regexp"
	"strings"

	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// DefaultEntrypoint is the command prefix every CI job starts with.
const DefaultEntrypoint = "./.murdock"

var (
	typeTokenRe   = regexp.MustCompile(`^[a-z_]+$`)
	applicationRe = regexp.MustCompile(`^[a-zA-Z0-9/_-]+$`)
	targetRe      = regexp.MustCompile(`^([a-zA-Z0-9_-]+):([a-zA-Z0-9_-]+)$`)
)

// Classifier maps type tokens to job types.
type Classifier struct {
	Entrypoint string // empty accepts any first token
	types      map[string]types.JobType
}

// NewClassifier builds a classifier from the configured token lists.
// A token listed in both lists is classified as a test.
func NewClassifier(entrypoint string, testTokens, buildTokens []string) *Classifier {
	c := &Classifier{
		Entrypoint: entrypoint,
		types:      make(map[string]types.JobType, len(testTokens)+len(buildTokens)),
	}
	for _, tok := range buildTokens {
		c.types[tok] = types.TypeBuilds
	}
	for _, tok := range testTokens {
		c.types[tok] = types.TypeTests
	}
	return c
}

// Default returns the classifier used by the CI scripts: run_test and compile.
func Default() *Classifier {
	return NewClassifier(DefaultEntrypoint, []string{"run_test"}, []string{"compile"})
}

// TypeOf returns the job type for a type token; unknown tokens are kept verbatim.
func (c *Classifier) TypeOf(token string) types.JobType {
	if t, ok := c.types[token]; ok {
		return t
	}
	return types.JobType(token)
}

// Parse decodes one raw job. It is pure: equal inputs give equal records.
func (c *Classifier) Parse(raw types.RawJob) types.JobRecord {
	res := raw.Result
	rec := types.JobRecord{
		ID:      raw.JobID,
		Status:  res.Status.Passed(),
		Worker:  res.Worker,
		Runtime: float64(res.Runtime),
		Output:  res.Output,
		Name:    Name(res.Body.Command),
	}

	if token, app, target, toolchain, ok := c.match(res.Body.Command); ok {
		rec.Type = c.TypeOf(token)
		rec.Application = app
		rec.Target = target
		rec.Toolchain = toolchain
		return rec
	}

	rec.Type = types.JobType(rec.Name)
	return rec
}

// ParseAll parses a finite collection in order.
func (c *Classifier) ParseAll(raws []types.RawJob) []types.JobRecord {
	records := make([]types.JobRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, c.Parse(raw))
	}
	return records
}

func (c *Classifier) match(command string) (token, app, target, toolchain string, ok bool) {
	fields := strings.Fields(command)
	if len(fields) < 4 {
		return "", "", "", "", false
	}
	if c.Entrypoint != "" && fields[0] != c.Entrypoint {
		return "", "", "", "", false
	}
	if !typeTokenRe.MatchString(fields[1]) || !applicationRe.MatchString(fields[2]) {
		return "", "", "", "", false
	}
	m := targetRe.FindStringSubmatch(fields[3])
	if m == nil {
		return "", "", "", "", false
	}
	return fields[1], fields[2], m[1], m[2], true
}

// Name joins every command token after the entrypoint with "/".
func Name(command string) string {
	return strings.Join(Tokens(command), "/")
}

// Tokens returns the command tokens after the entrypoint.
func Tokens(command string) []string {
	fields := strings.Fields(command)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}
