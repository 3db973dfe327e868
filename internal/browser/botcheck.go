package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BlockVerdict is the result of inspecting a page for an anti-automation wall.
type BlockVerdict struct {
	Blocked bool
	Score   float64
	Reasons []string
}

const blockThreshold = 1.0

var challengeSelectors = []string{
	"#captchacharacters",
	"form[action*='Captcha']",
	"form[action*='validateCaptcha']",
	"iframe[src*='recaptcha']",
	"iframe[src*='hcaptcha']",
	"#challenge-form",
	"#cf-challenge-running",
}

var blockPhrases = []string{
	"enter the characters you see below",
	"make sure you're not a robot",
	"to discuss automated access to amazon data",
	"klicke auf die schaltfläche unten",
	"checking your browser before accessing",
	"verify you are human",
	"request blocked",
	"access denied",
}

var blockTitles = []string{"robot check", "attention required", "just a moment", "access denied"}

// DetectBlock scores a page for captcha and bot-wall markers. A challenge
// element alone blocks; text markers need to agree.
func DetectBlock(doc *goquery.Document, title string) BlockVerdict {
	var v BlockVerdict

	for _, sel := range challengeSelectors {
		if doc.Find(sel).Length() > 0 {
			v.Score += 1.0
			v.Reasons = append(v.Reasons, "element "+sel)
		}
	}

	lowerTitle := strings.ToLower(title)
	if lowerTitle == "" {
		lowerTitle = strings.ToLower(doc.Find("title").First().Text())
	}
	for _, t := range blockTitles {
		if strings.Contains(lowerTitle, t) {
			v.Score += 0.5
			v.Reasons = append(v.Reasons, "title "+t)
		}
	}

	text := strings.ToLower(doc.Find("body").Text())
	for _, p := range blockPhrases {
		if strings.Contains(text, p) {
			v.Score += 0.5
			v.Reasons = append(v.Reasons, "text "+p)
		}
	}

	v.Blocked = v.Score >= blockThreshold
	return v
}
