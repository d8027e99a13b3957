// Package portal drives the third-party availability-search form and reads
// appointment slots off its results view. The form is a legacy multi-step
// stateful flow with inconsistent load timing, so every wait is bounded and
// every drive is retried with session replacement when the remote browser
// stops responding.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/apptscope/apptscope/pkg/browser"
	"github.com/apptscope/apptscope/pkg/dataset"
)

// Clinician is one roster entry from the portal's clinician-select control.
type Clinician struct {
	ID   string
	Name string
}

// Availability is the outcome of driving the form for one clinician. Status
// is empty when slots were found; otherwise it is one of the dataset's
// no_appointments / no_slots_found states. RawHTML carries the rendered
// results view when extraction came up empty, for debug dumps.
type Availability struct {
	Status  string
	Slots   []*dataset.Slot
	RawHTML string
}

// NavigationError reports a driven stage that failed after all retries. The
// orchestrator converts it into error status on the clinician's record; it
// never aborts a batch.
type NavigationError struct {
	Stage string
	Err   error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("portal navigation failed at %s: %v", e.Stage, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

func navErr(stage string, err error) error {
	return &NavigationError{Stage: stage, Err: err}
}

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

const (
	mainUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36"
	sweepUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// Config controls the driver's timing and tolerance.
type Config struct {
	BaseURL           string
	PageTimeout       time.Duration
	NavigationRetries int
	RetryDelay        time.Duration
	// Extended selects the retry sweep's profile: doubled waits, broader
	// extraction cascade, media requests allowed.
	Extended bool
}

// Sweep derives the error-retry sweep's config from the main pass's:
// doubled timeouts and retry counts on top of the extended profile.
func (c Config) Sweep() Config {
	c.PageTimeout *= 2
	c.NavigationRetries *= 2
	c.RetryDelay *= 2
	c.Extended = true
	return c
}

func (c Config) formWait() time.Duration {
	if c.Extended {
		return 20 * time.Second
	}
	return 10 * time.Second
}

func (c Config) resultsWait() time.Duration {
	if c.Extended {
		return 60 * time.Second
	}
	return 30 * time.Second
}

// settleDelay pads the results race: the portal keeps mutating the DOM for a
// moment after the first marker appears.
func (c Config) settleDelay() time.Duration {
	if c.Extended {
		return 5 * time.Second
	}
	return 2 * time.Second
}

func (c Config) stepDelay() time.Duration {
	if c.Extended {
		return time.Second
	}
	return 500 * time.Millisecond
}

func (c Config) userAgent() string {
	if c.Extended {
		return sweepUserAgent
	}
	return mainUserAgent
}

func (c Config) strategies() []Strategy {
	if c.Extended {
		return ExtendedStrategies()
	}
	return DefaultStrategies()
}

// Driver runs the availability-search flow on sessions borrowed from the
// manager.
type Driver struct {
	sessions *browser.Manager
	cfg      Config
	log      Logger
}

func NewDriver(sessions *browser.Manager, cfg Config, log Logger) *Driver {
	if log == nil {
		log = nopLogger{}
	}
	return &Driver{sessions: sessions, cfg: cfg, log: log}
}

// Roster reads the full clinician list (ID + display name) off the form's
// select control. The portal uses "" and "-1" as placeholder options.
func (d *Driver) Roster(ctx context.Context) ([]Clinician, error) {
	html, err := d.drive(ctx, "")
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}
	var roster []Clinician
	doc.Find("#InputSelectClinician option").Each(func(_ int, s *goquery.Selection) {
		id := strings.TrimSpace(s.AttrOr("value", ""))
		if id == "" || id == "-1" {
			return
		}
		roster = append(roster, Clinician{ID: id, Name: strings.TrimSpace(s.Text())})
	})
	if len(roster) == 0 {
		return nil, navErr("roster", errors.New("clinician select rendered no options"))
	}
	return roster, nil
}

// Availability drives the form for one clinician through to a terminal
// results state and extracts whatever slots are listed.
func (d *Driver) Availability(ctx context.Context, c Clinician) (Availability, error) {
	html, err := d.drive(ctx, c.ID)
	if err != nil {
		return Availability{}, err
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return Availability{}, err
	}

	if HasNoAppointments(doc) {
		return Availability{Status: dataset.StatusNoAppointments}, nil
	}

	raw := ExtractSlots(doc, d.cfg.strategies())
	if len(raw) == 0 {
		return Availability{Status: dataset.StatusNoSlotsFound, RawHTML: html}, nil
	}

	slots := make([]*dataset.Slot, len(raw))
	for i, rs := range raw {
		href := rs.Href
		if href == "" {
			// Dead anchors keep the portal's placeholder so the href
			// sanitation stage accounts for them instead of losing them here.
			href = "#"
		}
		slots[i] = &dataset.Slot{
			Href:   href,
			Time:   rs.Time,
			Date:   rs.DateLabel,
			Status: dataset.SlotListed,
		}
	}
	return Availability{Slots: slots}, nil
}

// drive runs the full form flow with retries. On any stage failure the
// session's health is probed; a dead session is discarded and replaced
// before the next attempt restarts from navigation.
func (d *Driver) drive(ctx context.Context, clinicianID string) (string, error) {
	sess, err := d.sessions.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer func() { d.sessions.Release(sess) }()

	var lastErr error
	for attempt := 1; attempt <= d.cfg.NavigationRetries; attempt++ {
		if attempt > 1 {
			d.log.Warnf("portal drive retry %d/%d", attempt, d.cfg.NavigationRetries)
			if err := wait(ctx, d.cfg.RetryDelay); err != nil {
				return "", err
			}
		}

		html, err := d.attempt(ctx, sess, clinicianID)
		if err == nil {
			return html, nil
		}
		lastErr = err
		d.log.Warnf("portal drive attempt %d failed: %v", attempt, err)

		if !sess.Valid() {
			d.log.Warnf("browser session unresponsive, replacing it")
			sess.Close()
			sess, err = d.sessions.Acquire(ctx)
			if err != nil {
				return "", err
			}
		}
	}
	if _, ok := lastErr.(*NavigationError); ok {
		return "", lastErr
	}
	return "", navErr("drive", lastErr)
}

// attempt performs a single end-to-end pass over the form stages.
func (d *Driver) attempt(ctx context.Context, sess *browser.Session, clinicianID string) (string, error) {
	page, err := sess.NewPage(browser.PageOptions{
		UserAgent:  d.cfg.userAgent(),
		AllowMedia: d.cfg.Extended,
	})
	if err != nil {
		return "", navErr("open-page", err)
	}
	defer page.Close()

	pg := page.Context(ctx)

	nav := pg.Timeout(d.cfg.PageTimeout)
	if err := nav.Navigate(d.cfg.BaseURL); err != nil {
		return "", navErr("navigate", err)
	}
	if err := nav.WaitLoad(); err != nil {
		return "", navErr("navigate", err)
	}

	if _, err := pg.Timeout(d.cfg.formWait()).Element("#IsNewPatientInput"); err != nil {
		return "", navErr("form-wait", err)
	}
	if err := wait(ctx, d.cfg.stepDelay()); err != nil {
		return "", err
	}

	loc, err := pg.Timeout(d.cfg.formWait()).Element("#InputLocation")
	if err != nil {
		return "", navErr("location-filter", err)
	}
	if err := loc.Select([]string{`option[value="-1"]`}, true, rod.SelectorTypeCSSSector); err != nil {
		return "", navErr("location-filter", err)
	}
	if err := wait(ctx, d.cfg.stepDelay()); err != nil {
		return "", err
	}

	if clinicianID == "" {
		// Roster fetch stops at the prepared form.
		html, err := pg.HTML()
		if err != nil {
			return "", navErr("read-form", err)
		}
		return html, nil
	}

	sel, err := pg.Timeout(d.cfg.formWait()).Element("#InputSelectClinician")
	if err != nil {
		return "", navErr("select-clinician", err)
	}
	if err := sel.Select([]string{fmt.Sprintf(`option[value=%q]`, clinicianID)}, true, rod.SelectorTypeCSSSector); err != nil {
		return "", navErr("select-clinician", err)
	}
	if err := wait(ctx, d.cfg.stepDelay()); err != nil {
		return "", err
	}

	btn, err := pg.Timeout(d.cfg.formWait()).Element("#ApptAvailabilityChecker__Submit-Button")
	if err != nil {
		return "", navErr("submit", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", navErr("submit", err)
	}

	// Results and no-results are both valid terminal states; racing the two
	// markers avoids false timeouts when either path renders slowly.
	if _, raceErr := pg.Timeout(d.cfg.resultsWait()).Race().
		Element(".AvailableTimeSlot").
		Element(".NoAvailableAppointments").
		Do(); raceErr != nil {
		// The portal sometimes renders the no-results state as bare text
		// with no marker element, which the race can never see. Accept the
		// page only if it still reached a recognizable terminal state.
		html, err := pg.HTML()
		if err != nil {
			return "", navErr("results-wait", raceErr)
		}
		doc, err := ParseDocument(html)
		if err != nil {
			return "", navErr("results-wait", raceErr)
		}
		if HasNoAppointments(doc) || len(ExtractSlots(doc, d.cfg.strategies())) > 0 {
			return html, nil
		}
		return "", navErr("results-wait", raceErr)
	}
	if err := wait(ctx, d.cfg.settleDelay()); err != nil {
		return "", err
	}

	html, err := pg.HTML()
	if err != nil {
		return "", navErr("read-results", err)
	}
	return html, nil
}

func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
