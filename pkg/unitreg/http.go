package unitreg

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/models"
)

// HTTPClient talks to the portal with plain form posts and parses the pages
// with goquery. It is not safe for concurrent use.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	log        logger.Logger
	solver     CaptchaSolver
	studentID  string
	form       *summaryForm
}

// summaryForm is the course page form that slot selections are posted with
type summaryForm struct {
	code    string
	action  string
	hidden  url.Values
	handles map[models.SlotHandle]bool
}

// NewHTTPClient creates a new portal client with cookie support
func NewHTTPClient(cfg Config, solver CaptchaSolver, log logger.Logger) *HTTPClient {
	jar, _ := cookiejar.New(nil)
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // the portal's certificate chain is often incomplete
	}
	return NewHTTPClientWithHTTPClient(cfg, &http.Client{
		Timeout:   cfg.Timeout,
		Jar:       jar,
		Transport: transport,
	}, solver, log)
}

// NewHTTPClientWithHTTPClient creates a new portal client with a custom http.Client
func NewHTTPClientWithHTTPClient(cfg Config, httpClient *http.Client, solver CaptchaSolver, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log,
		solver:     solver,
	}
}

func (c *HTTPClient) get(ctx context.Context, target string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, errors.Transport(err, "failed to create request")
	}
	return c.do(req)
}

func (c *HTTPClient) post(ctx context.Context, target string, form url.Values) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, errors.Transport(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// do executes a request and returns the body and the final URL after redirects
func (c *HTTPClient) do(req *http.Request) ([]byte, *url.URL, error) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	c.log.Debug("Portal request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, nil, errors.Cancelled(ctxErr)
		}
		return nil, nil, errors.Transport(err, "failed to connect to portal")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Transport(err, "failed to read response")
	}

	c.log.Debug("Portal response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode != http.StatusOK {
		return nil, nil, errors.Transportf("portal returned status %d", resp.StatusCode)
	}
	return body, resp.Request.URL, nil
}

func parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Transport(err, "failed to parse page")
	}
	return doc, nil
}

func resolve(base *url.URL, ref string) string {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// Login fetches the login page, solves its captcha and posts the credentials
func (c *HTTPClient) Login(ctx context.Context, studentID, password string) error {
	body, pageURL, err := c.get(ctx, c.cfg.LoginURL)
	if err != nil {
		return err
	}
	doc, err := parse(body)
	if err != nil {
		return err
	}

	src, ok := doc.Find(`img[src*="Kaptcha.jpg"]`).First().Attr("src")
	if !ok {
		return errors.Transportf("captcha image not found on login page")
	}
	image, _, err := c.get(ctx, resolve(pageURL, src))
	if err != nil {
		return err
	}
	answer, err := c.solver.Solve(ctx, image)
	if err != nil {
		return errors.Wrap(err, errors.ErrAmbiguous, "failed to solve captcha")
	}
	c.log.Debug("Solved captcha", "answer", answer)

	preKap, ok := doc.Find("input[name=preKap]").Attr("value")
	if !ok {
		return errors.Transportf("preKap value not found on login page")
	}
	target := pageURL.String()
	if action, ok := doc.Find("form[name=frmParam]").Attr("action"); ok && action != "" {
		target = resolve(pageURL, action)
	}

	form := url.Values{}
	form.Set("preKap", preKap)
	form.Set("reqFregkey", studentID)
	form.Set("reqPassword", password)
	form.Set("kaptchafield", answer)

	resp, _, err := c.post(ctx, target, form)
	if err != nil {
		return err
	}
	if bytes.Contains(resp, []byte(markerInvalidCredentials)) {
		return errors.InvalidCredentials("Your student ID or password is invalid")
	}
	if !bytes.Contains(resp, []byte(markerLoggedIn)) {
		return errors.Ambiguousf("login not confirmed, captcha answer %q may be wrong", answer)
	}

	c.studentID = studentID
	c.form = nil
	c.logStudentInfo(ctx)
	if err := c.storeCookies(); err != nil {
		c.log.Warn("Failed to store cookies", "file", c.cfg.CookieFile, "error", err)
	}
	return nil
}

// SessionAlive reports whether the registration page is reachable and open
func (c *HTTPClient) SessionAlive(ctx context.Context) (bool, error) {
	body, _, err := c.get(ctx, c.cfg.RegistrationURL)
	if err != nil {
		return false, err
	}
	if sessionExpired(body) {
		return false, nil
	}
	doc, err := parse(body)
	if err != nil {
		return false, err
	}
	return doc.Find("input[name=Register]").Length() > 0, nil
}

// FetchSlots loads the timetable of a course and remembers its form for submission
func (c *HTTPClient) FetchSlots(ctx context.Context, code string) ([]models.SlotRow, error) {
	c.form = nil

	form := url.Values{}
	form.Set("reqPaperType", "M")
	form.Set("reqFregkey", c.studentID)
	form.Set("reqUnit", code)
	form.Set("Save", "View")

	body, pageURL, err := c.post(ctx, c.cfg.CourseRegistrationURL, form)
	if err != nil {
		return nil, err
	}
	if sessionExpired(body) {
		return nil, errors.SessionExpired(markerSessionExpired)
	}
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}

	summary := doc.Find("form[name=frmSummary]").First()
	if summary.Length() == 0 {
		if alert := alertText(body); alert != "" {
			return nil, errors.NotFoundf("course %s: %s", code, alert)
		}
		return nil, errors.NotFoundf("course %s has no timetable", code)
	}

	sf := &summaryForm{
		code:    code,
		action:  resolve(pageURL, summary.AttrOr("action", "")),
		hidden:  url.Values{},
		handles: make(map[models.SlotHandle]bool),
	}
	summary.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
		if name, ok := in.Attr("name"); ok && name != "" {
			sf.hidden.Add(name, in.AttrOr("value", ""))
		}
	})

	rows := parseSlotRows(doc)
	for _, r := range rows {
		if r.Selectable && r.Handle != "" {
			sf.handles[r.Handle] = true
		}
	}
	c.form = sf
	return rows, nil
}

// Select marks a slot for submission. The form is only posted on SubmitSelection.
func (c *HTTPClient) Select(ctx context.Context, handle models.SlotHandle) error {
	if c.form == nil {
		return errors.Transportf("no course page loaded")
	}
	if !c.form.handles[handle] {
		return errors.NotFoundf("slot %s is not on the %s page", handle, c.form.code)
	}
	return nil
}

// Deselect unmarks a slot
func (c *HTTPClient) Deselect(ctx context.Context, handle models.SlotHandle) error {
	return c.Select(ctx, handle)
}

// SubmitSelection posts the course form with the given slots checked and
// returns the alert text of the reply, if any.
func (c *HTTPClient) SubmitSelection(ctx context.Context, handles []models.SlotHandle) (string, error) {
	if c.form == nil {
		return "", errors.Transportf("no course page loaded")
	}
	sf := c.form
	c.form = nil

	values := url.Values{}
	for k, v := range sf.hidden {
		values[k] = append([]string(nil), v...)
	}
	for _, h := range handles {
		values.Add("reqMid", string(h))
	}
	values.Set("Submit", "Submit")

	body, _, err := c.post(ctx, sf.action, values)
	if err != nil {
		return "", err
	}
	if sessionExpired(body) {
		return "", errors.SessionExpired(markerSessionExpired)
	}
	return alertText(body), nil
}

// Reset drops the loaded course form and returns to the registration page
func (c *HTTPClient) Reset(ctx context.Context) error {
	c.form = nil
	_, _, err := c.get(ctx, c.cfg.RegistrationURL)
	return err
}

func (c *HTTPClient) logStudentInfo(ctx context.Context) {
	body, _, err := c.get(ctx, c.cfg.CourseRegistrationURL)
	if err != nil {
		c.log.Debug("Failed to load student info", "error", err)
		return
	}
	doc, err := parse(body)
	if err != nil {
		return
	}
	for k, v := range parseStudentInfo(doc) {
		c.log.Debug("Student info", "field", k, "value", v)
	}
}

type storedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

func (c *HTTPClient) storeCookies() error {
	if c.cfg.CookieFile == "" || c.httpClient.Jar == nil {
		return nil
	}
	u, err := url.Parse(c.cfg.LoginURL)
	if err != nil {
		return err
	}

	var cookies []storedCookie
	for _, ck := range c.httpClient.Jar.Cookies(u) {
		cookies = append(cookies, storedCookie{Name: ck.Name, Value: ck.Value, Domain: u.Hostname(), Path: "/"})
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.cfg.CookieFile, data, 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	c.log.Debug("Cookies saved", "file", c.cfg.CookieFile, "count", len(cookies))
	return nil
}
