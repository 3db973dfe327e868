package negotiator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

type State string

const (
	Unchecked   State = "unchecked"
	Verified    State = "verified"
	Mismatched  State = "mismatched"
	Negotiating State = "negotiating"
	Failed      State = "failed"
)

type StepStatus string

const (
	StepOK          StepStatus = "ok"
	StepSkipped     StepStatus = "skipped"
	StepSoftFailure StepStatus = "soft_failure"
)

// StepResult reports one UI step. Skipped means the element the step needs
// is not on the page, which counts as already satisfied.
type StepResult struct {
	Step   string     `json:"step"`
	Status StepStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

func Ok(step string) StepResult { return StepResult{Step: step, Status: StepOK} }

func Skipped(step, reason string) StepResult {
	return StepResult{Step: step, Status: StepSkipped, Reason: reason}
}

func SoftFailure(step, reason string) StepResult {
	return StepResult{Step: step, Status: StepSoftFailure, Reason: reason}
}

// Surface is the part of a page the negotiator drives.
type Surface interface {
	Count(selector string) (int, error)
	InnerText(selector string) (string, error)
	Click(selector string) error
	Fill(selector, value string) error
	Press(selector, key string) error
	SelectOption(selector, value string) error
	WaitVisible(selector string, timeout time.Duration) error
	WaitNetworkIdle(timeout time.Duration) error
}

// LocationUI lists, per step, the selectors of a storefront's delivery
// location widget in priority order.
type LocationUI struct {
	Indicator     []string
	Opener        []string
	PostalInput   []string
	Apply         []string
	CountrySelect []string
	Confirm       []string
	Close         []string
}

type Outcome struct {
	State       State        `json:"state"`
	Observed    string       `json:"observed,omitempty"`
	Steps       []StepResult `json:"steps"`
	Transitions []State      `json:"transitions"`
	Mutations   int          `json:"mutations"`
}

func (o *Outcome) to(s State) {
	o.State = s
	o.Transitions = append(o.Transitions, s)
}

func (o *Outcome) add(r StepResult) {
	o.Steps = append(o.Steps, r)
}

// Reason summarizes the soft failures of a failed negotiation.
func (o Outcome) Reason() string {
	var parts []string
	for _, s := range o.Steps {
		if s.Status == StepSoftFailure {
			parts = append(parts, s.Step+": "+s.Reason)
		}
	}
	if o.Observed != "" {
		parts = append(parts, "observed "+o.Observed)
	}
	return strings.Join(parts, "; ")
}

// Locator maps indicator text back to a known region.
type Locator interface {
	ByLocation(text string) (models.RegionConfig, bool)
}

// Tag converts the outcome into the region a record is labeled with. A
// verified outcome carries the target's code. Otherwise the code is whatever
// region the observed indicator names, or empty when loc knows none.
func (o Outcome) Tag(target models.RegionConfig, loc Locator) models.RegionTag {
	if o.State == Verified {
		tag := models.RegionTag{Code: target.Code, Location: target.DeliveryLocation, Confirmed: true}
		if o.Observed != "" {
			tag.Location = o.Observed
		}
		return tag
	}

	tag := models.RegionTag{Location: o.Observed}
	if o.Observed != "" && loc != nil {
		if r, ok := loc.ByLocation(o.Observed); ok {
			tag.Code = r.Code
		}
	}
	return tag
}

type Negotiator struct {
	stepTimeout time.Duration
	logger      *slog.Logger
}

func New(stepTimeout time.Duration, logger *slog.Logger) *Negotiator {
	if stepTimeout <= 0 {
		stepTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{
		stepTimeout: stepTimeout,
		logger:      logger.With("component", "negotiator"),
	}
}

// Negotiate makes the page show prices for target's delivery location.
// It never returns an error: every problem is recorded as a step result and
// a Failed outcome still lets extraction proceed.
func (n *Negotiator) Negotiate(ctx context.Context, page Surface, ui *LocationUI, target models.RegionConfig) Outcome {
	out := Outcome{}
	out.to(Unchecked)

	if ui == nil || len(ui.Indicator) == 0 {
		out.add(Skipped("read-indicator", "storefront has no location selector"))
		out.to(Verified)
		return out
	}

	observed, ok := n.readIndicator(page, ui.Indicator)
	if !ok {
		out.add(Skipped("read-indicator", "indicator not present"))
		out.to(Verified)
		return out
	}
	out.Observed = observed

	if Matches(observed, target) {
		out.add(Ok("read-indicator"))
		out.to(Verified)
		return out
	}

	out.add(StepResult{Step: "read-indicator", Status: StepOK, Reason: "observed " + observed})
	out.to(Mismatched)
	n.logger.Info("delivery region mismatch", "observed", observed, "target", target.DeliveryLocation)

	out.to(Negotiating)
	steps := []func(*Outcome){
		func(o *Outcome) { n.clickFirst(page, o, "open-selector", ui.Opener) },
		func(o *Outcome) { n.waitDialog(page, o, ui) },
		func(o *Outcome) { n.enterLocation(page, o, ui, target) },
		func(o *Outcome) { n.clickFirst(page, o, "confirm", ui.Confirm) },
		func(o *Outcome) { n.clickFirst(page, o, "close", ui.Close) },
		func(o *Outcome) { n.settle(page, o) },
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			out.add(SoftFailure("negotiate", err.Error()))
			out.to(Failed)
			return out
		}
		step(&out)
	}

	after, ok := n.readIndicator(page, ui.Indicator)
	if !ok {
		out.add(Skipped("verify", "indicator not present after update"))
		out.to(Verified)
		return out
	}
	out.Observed = after

	if Matches(after, target) {
		out.add(Ok("verify"))
		out.to(Verified)
		return out
	}

	out.add(SoftFailure("verify", fmt.Sprintf("still showing %q", after)))
	out.to(Failed)
	n.logger.Warn("region negotiation failed", "observed", after, "target", target.DeliveryLocation)
	return out
}

func (n *Negotiator) readIndicator(page Surface, selectors []string) (string, bool) {
	sel, ok := firstPresent(page, selectors)
	if !ok {
		return "", false
	}
	text, err := page.InnerText(sel)
	if err != nil {
		return "", false
	}
	text = strings.Join(strings.Fields(text), " ")
	return text, text != ""
}

func (n *Negotiator) clickFirst(page Surface, o *Outcome, step string, selectors []string) {
	sel, ok := firstPresent(page, selectors)
	if !ok {
		o.add(Skipped(step, "element not present"))
		return
	}
	if err := page.Click(sel); err != nil {
		o.add(SoftFailure(step, err.Error()))
		return
	}
	o.Mutations++
	o.add(Ok(step))
}

func (n *Negotiator) waitDialog(page Surface, o *Outcome, ui *LocationUI) {
	targets := append(append([]string{}, ui.PostalInput...), ui.CountrySelect...)
	if len(targets) == 0 {
		o.add(Skipped("wait-dialog", "no input configured"))
		return
	}
	if err := page.WaitVisible(strings.Join(targets, ", "), n.stepTimeout); err != nil {
		o.add(SoftFailure("wait-dialog", err.Error()))
		return
	}
	o.add(Ok("wait-dialog"))
}

func (n *Negotiator) enterLocation(page Surface, o *Outcome, ui *LocationUI, target models.RegionConfig) {
	value := CanonicalInput(target.DeliveryLocation)

	if sel, ok := firstPresent(page, ui.PostalInput); ok && value != "" {
		if err := page.Fill(sel, value); err != nil {
			o.add(SoftFailure("enter-location", err.Error()))
			return
		}
		o.Mutations++

		if apply, ok := firstPresent(page, ui.Apply); ok {
			if err := page.Click(apply); err != nil {
				o.add(SoftFailure("enter-location", "apply: "+err.Error()))
				return
			}
		} else if err := page.Press(sel, "Enter"); err != nil {
			o.add(SoftFailure("enter-location", "submit: "+err.Error()))
			return
		}
		o.Mutations++
		o.add(Ok("enter-location"))
		return
	}

	if sel, ok := firstPresent(page, ui.CountrySelect); ok {
		if err := page.SelectOption(sel, target.Code); err != nil {
			o.add(SoftFailure("enter-location", err.Error()))
			return
		}
		o.Mutations++
		o.add(Ok("enter-location"))
		return
	}

	o.add(Skipped("enter-location", "no location input present"))
}

func (n *Negotiator) settle(page Surface, o *Outcome) {
	if err := page.WaitNetworkIdle(n.stepTimeout); err != nil {
		o.add(SoftFailure("settle", err.Error()))
		return
	}
	o.add(Ok("settle"))
}

func firstPresent(page Surface, selectors []string) (string, bool) {
	for _, sel := range selectors {
		if c, err := page.Count(sel); err == nil && c > 0 {
			return sel, true
		}
	}
	return "", false
}
