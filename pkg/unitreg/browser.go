package unitreg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/models"
)

const (
	summaryRows   = `form[name=frmSummary] tr`
	pollInterval  = 200 * time.Millisecond
	pageTextQuery = `document.body ? document.body.innerText : ""`
)

// BrowserClient drives the portal in a real Chrome through the DevTools protocol.
// Slot handles are row indexes into the course form.
type BrowserClient struct {
	cfg    Config
	log    logger.Logger
	solver CaptchaSolver

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	dialogs     chan string
}

// NewBrowserClient creates a client; Chrome is started on first use
func NewBrowserClient(cfg Config, solver CaptchaSolver, log logger.Logger) *BrowserClient {
	return &BrowserClient{
		cfg:     cfg,
		log:     log,
		solver:  solver,
		dialogs: make(chan string, 4),
	}
}

func (b *BrowserClient) browser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		return b.ctx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", b.cfg.InsecureTLS),
		chromedp.WindowSize(1920, 1080),
	)
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Alerts block the page until handled; record and accept every one
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		e, ok := ev.(*page.EventJavascriptDialogOpening)
		if !ok {
			return
		}
		select {
		case b.dialogs <- e.Message:
		default:
		}
		go func() {
			if err := chromedp.Run(ctx, page.HandleJavaScriptDialog(true)); err != nil {
				b.log.Debug("Failed to accept dialog", "error", err)
			}
		}()
	})

	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, errors.Transport(err, "failed to start browser")
	}
	b.log.Info("Browser started", "headless", b.cfg.Headless)
	b.ctx, b.cancel, b.allocCancel = ctx, cancel, allocCancel
	return ctx, nil
}

// Close shuts the browser down
func (b *BrowserClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.allocCancel()
		b.ctx, b.cancel, b.allocCancel = nil, nil, nil
	}
	return nil
}

// run executes actions bounded by the configured timeout and by ctx
func (b *BrowserClient) run(ctx context.Context, actions ...chromedp.Action) error {
	bctx, err := b.browser()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(bctx, b.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err = chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Cancelled(ctxErr)
	}
	if err != nil {
		return errors.Transport(err, "browser action failed")
	}
	return nil
}

func (b *BrowserClient) pageText(ctx context.Context) (string, error) {
	var text string
	err := b.run(ctx, chromedp.Evaluate(pageTextQuery, &text))
	return text, err
}

func (b *BrowserClient) exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	js := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	err := b.run(ctx, chromedp.Evaluate(js, &found))
	return found, err
}

// waitFor polls until selector appears or the dialog wait elapses
func (b *BrowserClient) waitFor(ctx context.Context, selector string, d time.Duration) (bool, error) {
	deadline := time.Now().Add(d)
	for {
		found, err := b.exists(ctx, selector)
		if err != nil || found {
			return found, err
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, errors.Cancelled(ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Login fills the login form, answering the captcha from a screenshot of its image
func (b *BrowserClient) Login(ctx context.Context, studentID, password string) error {
	var image []byte
	err := b.run(ctx,
		chromedp.Navigate(b.cfg.LoginURL),
		chromedp.WaitVisible(`form[name=frmParam]`, chromedp.ByQuery),
		chromedp.Screenshot(`//input[@name='kaptchafield']/../img[1]`, &image, chromedp.BySearch),
	)
	if err != nil {
		return err
	}

	answer, err := b.solver.Solve(ctx, image)
	if err != nil {
		return errors.Wrap(err, errors.ErrAmbiguous, "failed to solve captcha")
	}
	b.log.Debug("Solved captcha", "answer", answer)

	err = b.run(ctx,
		chromedp.SendKeys(`input[name=reqFregkey]`, studentID, chromedp.ByQuery),
		chromedp.SendKeys(`input[name=reqPassword]`, password, chromedp.ByQuery),
		chromedp.SendKeys(`input[name=kaptchafield]`, answer+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(b.cfg.DialogWait)
	for {
		text, err := b.pageText(ctx)
		if err != nil {
			return err
		}
		switch {
		case strings.Contains(text, markerInvalidCredentials):
			return errors.InvalidCredentials("Your student ID or password is invalid")
		case strings.Contains(text, markerLoggedIn):
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Ambiguousf("login not confirmed, captcha answer %q may be wrong", answer)
		}
		select {
		case <-ctx.Done():
			return errors.Cancelled(ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// SessionAlive opens the registration page and looks for the Register button
func (b *BrowserClient) SessionAlive(ctx context.Context) (bool, error) {
	if err := b.run(ctx, chromedp.Navigate(b.cfg.RegistrationURL)); err != nil {
		return false, err
	}
	text, err := b.pageText(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(text, markerSessionExpired) {
		return false, nil
	}
	return b.exists(ctx, `input[name=Register]`)
}

type browserRow struct {
	Type     string `json:"type"`
	Slot     string `json:"slot"`
	Index    int    `json:"index"`
	Box      bool   `json:"box"`
	Disabled bool   `json:"disabled"`
}

const readRowsJS = `Array.from(document.querySelectorAll("form[name=frmSummary] tr")).map((tr, i) => {
	const td = tr.querySelectorAll("td");
	if (td.length < 3) return null;
	const box = tr.querySelector("input[type=checkbox]");
	return {type: td[1].innerText.trim(), slot: td[2].innerText.trim(), index: i, box: !!box, disabled: box ? box.disabled : false};
}).filter(r => r !== null)`

// FetchSlots enters the course code on the registration page and reads its timetable
func (b *BrowserClient) FetchSlots(ctx context.Context, code string) ([]models.SlotRow, error) {
	if err := b.run(ctx, chromedp.Navigate(b.cfg.CourseRegistrationURL)); err != nil {
		return nil, err
	}
	if err := b.checkExpired(ctx); err != nil {
		return nil, err
	}

	err := b.run(ctx,
		chromedp.WaitVisible(`input#reqUnit`, chromedp.ByQuery),
		chromedp.SendKeys(`input#reqUnit`, code+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}

	found, err := b.waitFor(ctx, `form[name=frmSummary]`, b.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if !found {
		if err := b.checkExpired(ctx); err != nil {
			return nil, err
		}
		return nil, errors.NotFoundf("course %s has no timetable", code)
	}

	var raw []browserRow
	if err := b.run(ctx, chromedp.Evaluate(readRowsJS, &raw)); err != nil {
		return nil, err
	}

	var rows []models.SlotRow
	for _, r := range raw {
		classType, ok := models.ParseClassType(r.Type)
		if !ok {
			continue
		}
		slot, err := strconv.Atoi(r.Slot)
		if err != nil {
			continue
		}
		row := models.SlotRow{ClassType: classType, SlotNumber: slot}
		if r.Box {
			row.Selectable = !r.Disabled
			row.Handle = models.SlotHandle(strconv.Itoa(r.Index))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (b *BrowserClient) checkExpired(ctx context.Context) error {
	text, err := b.pageText(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(text, markerSessionExpired) {
		return errors.SessionExpired(markerSessionExpired)
	}
	return nil
}

// toggle clicks the row's checkbox when its state differs from want
func (b *BrowserClient) toggle(ctx context.Context, handle models.SlotHandle, want bool) error {
	index, err := strconv.Atoi(string(handle))
	if err != nil {
		return errors.InvalidInputf("invalid slot handle %q", handle)
	}
	js := fmt.Sprintf(`(() => {
	const tr = document.querySelectorAll(%q)[%d];
	const box = tr ? tr.querySelector("input[type=checkbox]") : null;
	if (!box) return false;
	if (box.checked !== %t) box.click();
	return box.checked === %t;
})()`, summaryRows, index, want, want)

	var ok bool
	if err := b.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return errors.NotFoundf("checkbox for row %d not found", index)
	}
	return nil
}

// Select checks a slot's checkbox
func (b *BrowserClient) Select(ctx context.Context, handle models.SlotHandle) error {
	return b.toggle(ctx, handle, true)
}

// Deselect unchecks a slot's checkbox
func (b *BrowserClient) Deselect(ctx context.Context, handle models.SlotHandle) error {
	return b.toggle(ctx, handle, false)
}

// SubmitSelection clicks Submit and waits briefly for an alert.
// No alert within the dialog wait is reported as an empty reply.
func (b *BrowserClient) SubmitSelection(ctx context.Context, handles []models.SlotHandle) (string, error) {
	for drained := false; !drained; {
		select {
		case <-b.dialogs:
		default:
			drained = true
		}
	}

	if err := b.run(ctx, chromedp.Click(`form[name=frmSummary] input[name=Submit]`, chromedp.ByQuery)); err != nil {
		return "", err
	}

	timer := time.NewTimer(b.cfg.DialogWait)
	defer timer.Stop()
	select {
	case msg := <-b.dialogs:
		return msg, nil
	case <-timer.C:
		return "", nil
	case <-ctx.Done():
		return "", errors.Cancelled(ctx.Err())
	}
}

// Reset navigates back to the registration page
func (b *BrowserClient) Reset(ctx context.Context) error {
	return b.run(ctx, chromedp.Navigate(b.cfg.RegistrationURL))
}
