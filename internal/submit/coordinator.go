// Package submit coordinates the final leg of the capture pipeline:
// aggregating a session's images into one analysis call, reconciling
// partial failures across uploaded batches, and handing confirmed entries
// to the persistence boundary.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/craigvandotcom/eatzone/internal/capture"
	"github.com/craigvandotcom/eatzone/internal/models"
	"github.com/craigvandotcom/eatzone/internal/validate"
)

// ErrSuperseded marks an analysis call that lost to a newer one. Its result
// was discarded without touching coordinator state.
var ErrSuperseded = errors.New("analysis request superseded by a newer one")

// ErrAllUploadsFailed blocks a batch in which not a single file validated.
var ErrAllUploadsFailed = errors.New("all files in the batch failed validation")

// ZeroIngredientsMessage is the neutral informational message for a
// successful analysis that found nothing; it is not an error.
const ZeroIngredientsMessage = "No ingredients detected. You can add them manually."

// Analyzer is the ingredient-analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, images []string) (*models.AnalysisResult, error)
}

// EntryStore is the persistence collaborator.
type EntryStore interface {
	SaveEntry(ctx context.Context, entry *models.Entry) error
}

// Upload is one file-picker file entering the pipeline.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// UploadFailure reports one rejected file by its 1-based batch position.
type UploadFailure struct {
	Index    int
	Filename string
	Err      *validate.Error
}

// Coordinator owns the in-progress entry draft for one capture session and
// drives analysis and submission. Analysis calls follow a last-request-wins
// rule: a new call cancels and supersedes any in-flight one, and a stale
// response can never mutate the draft.
type Coordinator struct {
	analyzer Analyzer
	store    EntryStore

	mu          sync.Mutex
	gen         uint64
	cancelPrior context.CancelFunc

	name        string
	userNamed   bool
	notes       string
	ingredients []models.Ingredient
}

// NewCoordinator wires a coordinator to its collaborators.
func NewCoordinator(analyzer Analyzer, store EntryStore) *Coordinator {
	return &Coordinator{analyzer: analyzer, store: store}
}

// Analyze sends images to the analysis service and, if this call is still
// the newest when the answer lands, merges the result into the draft.
// Superseded calls return ErrSuperseded with the draft untouched.
func (c *Coordinator) Analyze(ctx context.Context, images []string) (*models.AnalysisResult, error) {
	c.mu.Lock()
	if c.cancelPrior != nil {
		c.cancelPrior()
	}
	callCtx, cancel := context.WithCancel(ctx)
	c.cancelPrior = cancel
	c.gen++
	myGen := c.gen
	c.mu.Unlock()

	result, err := c.analyzer.Analyze(callCtx, images)

	c.mu.Lock()
	defer c.mu.Unlock()
	if myGen != c.gen {
		// A newer request started while this one was in flight. Whatever
		// happened, this response must leave no trace.
		return nil, ErrSuperseded
	}
	c.cancelPrior = nil
	if err != nil {
		return nil, err
	}

	c.ingredients = MergeIngredients(c.ingredients, result.Ingredients)
	if !c.userNamed {
		c.name = MergeName(c.name, result.MealSummary)
	}
	if len(result.Ingredients) == 0 {
		slog.Info("analysis found no ingredients", "images", len(images))
	}
	return result, nil
}

// SetName records a user-entered meal name. Once set, analysis results never
// overwrite it.
func (c *Coordinator) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.userNamed = name != ""
}

// SetNotes records the entry notes.
func (c *Coordinator) SetNotes(notes string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = notes
}

// AddIngredient appends a manually-entered ingredient to the draft.
func (c *Coordinator) AddIngredient(ing models.Ingredient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ing.Zone = defaultZone(ing.Zone)
	c.ingredients = append(c.ingredients, ing)
}

// Name returns the current draft name.
func (c *Coordinator) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Ingredients returns a copy of the draft ingredient set.
func (c *Coordinator) Ingredients() []models.Ingredient {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Ingredient, len(c.ingredients))
	copy(out, c.ingredients)
	return out
}

// AddUploads pushes a batch of picked files through the session's shared
// validation and compression path. Invalid files are reported by position
// and the valid remainder proceeds; the batch only fails outright when
// every file was rejected.
func (c *Coordinator) AddUploads(ctx context.Context, session *capture.Session, uploads []Upload) ([]UploadFailure, error) {
	var failures []UploadFailure
	accepted := 0

	for i, up := range uploads {
		out, err := session.AddUpload(ctx, up.MimeType, up.Data)
		if err != nil {
			// Session-level refusals (cap reached, busy, closed) stop the
			// batch; files already accepted stay.
			return failures, fmt.Errorf("upload %d (%s) rejected: %w", i+1, up.Filename, err)
		}
		if !out.Valid {
			slog.Warn("upload failed validation",
				"index", i+1, "filename", up.Filename, "code", out.Err.Code)
			failures = append(failures, UploadFailure{Index: i + 1, Filename: up.Filename, Err: out.Err})
			continue
		}
		accepted++
	}

	if len(uploads) > 0 && accepted == 0 {
		return failures, ErrAllUploadsFailed
	}
	return failures, nil
}

// Submit freezes the session, persists the entry, and tears the session
// down only after the save is confirmed. A failed save restores the session
// with every image intact for retry.
func (c *Coordinator) Submit(ctx context.Context, session *capture.Session) (*models.Entry, error) {
	images, err := session.BeginSubmit()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	now := time.Now()
	entry := &models.Entry{
		ID:          fmt.Sprintf("entry_%d", now.UnixNano()),
		Name:        c.name,
		Notes:       c.notes,
		Ingredients: append([]models.Ingredient(nil), c.ingredients...),
		Images:      images,
		Timestamp:   now,
		CreatedAt:   now,
	}
	c.mu.Unlock()

	if err := c.store.SaveEntry(ctx, entry); err != nil {
		session.EndSubmit(false)
		return nil, fmt.Errorf("failed to save entry: %w", err)
	}

	session.EndSubmit(true)
	c.reset()
	slog.Info("entry submitted", "id", entry.ID, "images", len(images), "ingredients", len(entry.Ingredients))
	return entry, nil
}

// Close cancels any in-flight analysis call; its response will be discarded.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelPrior != nil {
		c.cancelPrior()
		c.cancelPrior = nil
	}
	c.gen++
}

func (c *Coordinator) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = ""
	c.userNamed = false
	c.notes = ""
	c.ingredients = nil
}
