// Package reconciler runs the email-to-bug pipeline: it walks the
// unseen messages of a mailbox session, decodes and extracts each one,
// and applies create-or-update semantics against the bug store with
// exactly-once dedup on Message-ID.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"email-bug-tracker-go/internal/decoder"
	"email-bug-tracker-go/internal/mailbox"
	"email-bug-tracker-go/internal/metrics"
	"email-bug-tracker-go/internal/parser"
	"email-bug-tracker-go/internal/store"
)

// OutcomeKind classifies what happened to one message.
type OutcomeKind int

const (
	// Created: a new bug was created and the message sealed.
	Created OutcomeKind = iota
	// Updated: an existing bug was updated, one modification logged.
	Updated
	// SkippedDuplicate: Message-ID already processed; marked seen.
	SkippedDuplicate
	// SkippedError: fetch/decode/extract/store failure; the message
	// stays unseen and eligible for a later run.
	SkippedError
)

func (k OutcomeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case SkippedDuplicate:
		return "skipped_duplicate"
	case SkippedError:
		return "skipped_error"
	}
	return "unknown"
}

// Outcome is the terminal state of one message in a run.
type Outcome struct {
	Kind   OutcomeKind
	BugID  string
	Reason string
}

// Report aggregates the outcomes of one run.
type Report struct {
	Fetched    int `json:"fetched"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

func (r *Report) add(o Outcome) {
	switch o.Kind {
	case Created:
		r.Created++
	case Updated:
		r.Updated++
	case SkippedDuplicate:
		r.Duplicates++
	case SkippedError:
		r.Skipped++
	}
}

// DialFunc opens a fresh mailbox session for one run.
type DialFunc func() (mailbox.Source, error)

// Reconciler drives the pipeline. Messages within a run are processed
// strictly sequentially: mark-seen side effects and dedup checks must
// stay ordered relative to transaction commits.
type Reconciler struct {
	dial       DialFunc
	store      *store.Store
	metrics    *metrics.Metrics
	maxRetries int
	retryDelay time.Duration
}

// New creates a Reconciler. maxRetries bounds how often a run is
// retried after a connection-level failure; per-message failures are
// never retried within a run.
func New(dial DialFunc, st *store.Store, m *metrics.Metrics, maxRetries int, retryDelay time.Duration) *Reconciler {
	return &Reconciler{
		dial:       dial,
		store:      st,
		metrics:    m,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Run executes one reconciliation pass, retrying the whole
// connect-and-process sequence on connection errors up to the retry
// budget. The report of the successful attempt is returned.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			logrus.Warnf("Retrying mailbox run (attempt %d/%d) after: %v", attempt, r.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}

		report, err := r.runOnce(ctx)
		if err == nil {
			return report, nil
		}
		if !mailbox.IsConnectionError(err) {
			return nil, err
		}
		lastErr = err
	}

	logrus.Errorf("Mailbox run failed after %d retries: %v", r.maxRetries, lastErr)
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// runOnce connects, processes every unseen message in mailbox order,
// and always closes the session.
func (r *Reconciler) runOnce(ctx context.Context) (*Report, error) {
	start := time.Now()
	r.metrics.RunCount.Inc()

	src, err := r.dial()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logrus.Errorf("Failed to close mailbox session: %v", err)
		}
	}()

	handles, err := src.ListUnseen()
	if err != nil {
		return nil, err
	}
	logrus.Infof("Found %d unseen messages", len(handles))

	report := &Report{}
	for _, h := range handles {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		outcome := r.processMessage(src, h)
		report.Fetched++
		report.add(outcome)
		r.recordOutcome(outcome)
	}

	r.metrics.MessagesFetched.Add(float64(report.Fetched))
	r.metrics.ProcessingTime.Observe(time.Since(start).Seconds())

	logrus.Infof("Run finished in %v: %d created, %d updated, %d duplicates, %d skipped",
		time.Since(start), report.Created, report.Updated, report.Duplicates, report.Skipped)
	return report, nil
}

// processMessage walks one message through the state machine. Any
// terminal failure before the dedup-checked transaction leaves the
// message unseen; duplicates and successful commits seal it with
// MarkSeen.
func (r *Reconciler) processMessage(src mailbox.Source, h mailbox.Handle) Outcome {
	raw, err := src.FetchRaw(h)
	if err != nil {
		logrus.Warnf("Failed to fetch message %s, skipping: %v", h, err)
		return Outcome{Kind: SkippedError, Reason: "fetch failed"}
	}

	email, err := decoder.Parse(raw)
	if err != nil {
		logrus.Warnf("Failed to decode message %s, skipping: %v", h, err)
		return Outcome{Kind: SkippedError, Reason: "decode failed"}
	}

	if email.MessageID == "" {
		logrus.Warnf("Message %s has no Message-ID header, skipping", h)
		return Outcome{Kind: SkippedError, Reason: "missing message-id"}
	}

	processed, err := r.store.HasProcessed(email.MessageID)
	if err != nil {
		logrus.Errorf("Failed to check dedup ledger for %s: %v", email.MessageID, err)
		return Outcome{Kind: SkippedError, Reason: "dedup check failed"}
	}
	if processed {
		return r.sealDuplicate(src, h, email.MessageID)
	}

	bugID, ok := parser.ExtractBugID(email.Subject)
	if !ok {
		logrus.Warnf("Could not extract bug ID from subject %q, skipping message %s", email.Subject, email.MessageID)
		return Outcome{Kind: SkippedError, Reason: "no bug id in subject"}
	}

	if !email.HasBody {
		logrus.Warnf("No plain text body in message %s, skipping", email.MessageID)
		return Outcome{Kind: SkippedError, BugID: bugID, Reason: "no plain text body"}
	}

	fields := parser.ExtractFields(email.Body)

	res, err := r.store.Reconcile(email.MessageID, bugID, email.Subject, fields)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateMessage) {
			return r.sealDuplicate(src, h, email.MessageID)
		}
		// Rolled back; the message stays unseen for retry once the
		// store recovers.
		logrus.Errorf("Store transaction failed for message %s (bug %s): %v", email.MessageID, bugID, err)
		return Outcome{Kind: SkippedError, BugID: bugID, Reason: "store transaction failed"}
	}

	if err := src.MarkSeen(h); err != nil {
		// The commit is durable and the ledger guards reprocessing;
		// the seen flag is only a best-effort re-fetch guard.
		logrus.Errorf("Failed to mark message %s as seen: %v", email.MessageID, err)
	}

	if res.Created {
		logrus.Infof("Created bug %s from message %s", bugID, email.MessageID)
		return Outcome{Kind: Created, BugID: bugID}
	}
	logrus.Infof("Updated bug %s (modified count %d) from message %s", bugID, res.Bug.ModifiedCount, email.MessageID)
	return Outcome{Kind: Updated, BugID: bugID}
}

func (r *Reconciler) sealDuplicate(src mailbox.Source, h mailbox.Handle, messageID string) Outcome {
	logrus.Infof("Message %s already processed, marking seen and skipping", messageID)
	if err := src.MarkSeen(h); err != nil {
		logrus.Errorf("Failed to mark duplicate message %s as seen: %v", messageID, err)
	}
	return Outcome{Kind: SkippedDuplicate}
}

func (r *Reconciler) recordOutcome(o Outcome) {
	switch o.Kind {
	case Created:
		r.metrics.BugsCreated.Inc()
	case Updated:
		r.metrics.BugsUpdated.Inc()
	case SkippedDuplicate:
		r.metrics.DuplicatesSkipped.Inc()
	case SkippedError:
		r.metrics.ErrorsSkipped.Inc()
	}
}
