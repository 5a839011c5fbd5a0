package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"auto_post_scheduler/config"
	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/logger"
)

// Selectors for the upload composer. The platform's upload UI changes often;
// these follow the commonly stable data-e2e attributes and DraftJS classes.
const (
	uploadURL       = "https://www.tiktok.com/creator-center/upload?from=upload"
	loginURLPrefix  = "https://www.tiktok.com/login"
	fileInputSel    = "input[type='file']"
	previewReadySel = "div[data-e2e='upload-preview']"
	captionSel      = ".notranslate.public-DraftEditor-content"
	audienceRootSel = "div[data-e2e='audience-selector']"
	postBtnSel      = "button[data-e2e='post_video_button']"
	successModalSel = ".tiktok-modal__modal-title"
	rejectedSel     = "div[data-e2e='upload-error']"
	dialogCloseSel  = "div[role='dialog'] button[aria-label='Close']"
)

// StageExecutor implements domain.StageExecutor on chromedp. Form
// interactions run under a short timeout and the upload stage under a longer
// one; a stuck stage should fail fast and retry rather than occupy the
// account's slot for minutes.
type StageExecutor struct {
	interactionTimeout time.Duration
	uploadTimeout      time.Duration
}

// NewStageExecutor creates a StageExecutor with the configured timeouts.
func NewStageExecutor(cfg *config.Config) *StageExecutor {
	return &StageExecutor{
		interactionTimeout: cfg.InteractionTimeout,
		uploadTimeout:      cfg.UploadTimeout,
	}
}

// RunStage performs one upload stage and classifies the result.
func (e *StageExecutor) RunStage(ctx context.Context, session domain.BrowserSession, stage domain.Stage, job *domain.VideoJob) (domain.StageOutcome, string) {
	timeout := e.interactionTimeout
	if stage == domain.StageUpload {
		timeout = e.uploadTimeout
	}

	stageCtx, cancel := context.WithTimeout(session.Context(), timeout)
	defer cancel()

	err := chromedp.Run(stageCtx, e.actions(stage, job)...)
	if err == nil {
		return domain.OutcomeSuccess, ""
	}

	outcome, detail := e.classify(session.Context(), stage, err)
	logger.Event("stage_failed", map[string]any{
		"job":     job.ID,
		"stage":   stage,
		"outcome": outcome,
		"detail":  detail,
	})
	return outcome, detail
}

func (e *StageExecutor) actions(stage domain.Stage, job *domain.VideoJob) []chromedp.Action {
	switch stage {
	case domain.StageUpload:
		return []chromedp.Action{
			chromedp.Navigate(uploadURL),
			chromedp.WaitVisible(fileInputSel),
			chromedp.ActionFunc(func(ctx context.Context) error {
				absPath, err := filepath.Abs(job.SourcePath)
				if err != nil {
					return err
				}
				return chromedp.SetUploadFiles(fileInputSel, []string{absPath}).Do(ctx)
			}),
			// The preview renders once platform-side processing finishes.
			chromedp.WaitVisible(previewReadySel),
		}
	case domain.StageSetCaption:
		return []chromedp.Action{
			chromedp.WaitVisible(captionSel),
			chromedp.Click(captionSel),
			chromedp.ActionFunc(func(ctx context.Context) error {
				// The composer pre-fills the caption with the file name.
				return chromedp.Evaluate(`document.querySelector("`+captionSel+`").textContent = ""`, nil).Do(ctx)
			}),
			chromedp.SendKeys(captionSel, job.Caption),
		}
	case domain.StageSetAudience:
		audience := job.Audience
		if audience == "" {
			audience = "everyone"
		}
		optionSel := fmt.Sprintf("%s div[data-e2e='audience-option-%s']", audienceRootSel, audience)
		return []chromedp.Action{
			chromedp.WaitVisible(audienceRootSel),
			chromedp.Click(audienceRootSel),
			chromedp.Click(optionSel),
		}
	case domain.StageSubmit:
		return []chromedp.Action{
			chromedp.WaitVisible(postBtnSel),
			chromedp.Click(postBtnSel),
		}
	case domain.StageConfirm:
		return []chromedp.Action{
			chromedp.WaitVisible(successModalSel),
		}
	}

	return []chromedp.Action{chromedp.ActionFunc(func(context.Context) error {
		return fmt.Errorf("unknown stage %q", stage)
	})}
}

// classify decides the stage outcome after a failed run. Authentication and
// explicit-rejection signals are checked first; anything ambiguous goes
// through the disambiguation routine before being declared transient.
func (e *StageExecutor) classify(sessionCtx context.Context, stage domain.Stage, runErr error) (domain.StageOutcome, string) {
	if sessionCtx.Err() != nil {
		// The whole session is gone (job ceiling or shutdown); nothing more
		// can be observed from the page.
		return domain.OutcomeTransient, runErr.Error()
	}

	if e.loginRedirected(sessionCtx) {
		return domain.OutcomeAuth, "session rejected: login redirect detected"
	}

	if e.contentRejected(sessionCtx) {
		return domain.OutcomePermanent, "platform rejected the upload"
	}

	if e.disambiguate(sessionCtx, stage) {
		return domain.OutcomeSuccess, ""
	}

	return domain.OutcomeTransient, runErr.Error()
}

// loginRedirected reports whether the page has been bounced to the login
// flow, the signal that the injected cookie set is no longer accepted.
func (e *StageExecutor) loginRedirected(sessionCtx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(sessionCtx, 3*time.Second)
	defer cancel()

	var url string
	if err := chromedp.Run(checkCtx, chromedp.Evaluate(`window.location.href`, &url)); err != nil {
		return false
	}
	return strings.HasPrefix(url, loginURLPrefix)
}

// contentRejected reports whether the platform showed an explicit rejection.
func (e *StageExecutor) contentRejected(sessionCtx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(sessionCtx, 3*time.Second)
	defer cancel()

	var visible bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, rejectedSel)
	if err := chromedp.Run(checkCtx, chromedp.Evaluate(script, &visible)); err != nil {
		return false
	}
	return visible
}

// disambiguate handles ambiguous failures: dismiss known blocking dialogs,
// then re-check the stage's primary success signal.
func (e *StageExecutor) disambiguate(sessionCtx context.Context, stage domain.Stage) bool {
	dismissCtx, cancel := context.WithTimeout(sessionCtx, 5*time.Second)
	defer cancel()

	_ = chromedp.Run(dismissCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Click(dialogCloseSel).Do(ctx)
	}))

	signal := e.successSignal(stage)
	if signal == "" {
		return false
	}

	checkCtx, cancelCheck := context.WithTimeout(sessionCtx, 5*time.Second)
	defer cancelCheck()

	var present bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, signal)
	if err := chromedp.Run(checkCtx, chromedp.Evaluate(script, &present)); err != nil {
		return false
	}
	return present
}

// successSignal returns the selector whose presence proves the stage in fact
// completed despite the reported failure.
func (e *StageExecutor) successSignal(stage domain.Stage) string {
	switch stage {
	case domain.StageUpload:
		return previewReadySel
	case domain.StageSubmit, domain.StageConfirm:
		return successModalSel
	}
	return ""
}
