package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/browser"
)

// nameElement describes one DOM element whose text contains the product name.
type nameElement struct {
	TagName      string  `json:"tagName"`
	ClassName    string  `json:"className"`
	ID           string  `json:"id"`
	OffsetTop    float64 `json:"offsetTop"`
	OffsetWidth  float64 `json:"offsetWidth"`
	OffsetHeight float64 `json:"offsetHeight"`
}

// nameElementsJS walks the page's main content areas and reports every
// element containing the product name, with position and size.
const nameElementsJS = `(() => {
	try {
		const productName = %s;
		const elements = [];
		const searchAreas = [
			document.querySelector('#main-product-wrapper'),
			document.querySelector('.product-container'),
			document.querySelector('.product-page'),
			document.querySelector('.product-detail'),
			document.querySelector('main'),
			document.body
		].filter(area => area);
		for (const area of searchAreas) {
			const walker = document.createTreeWalker(area, NodeFilter.SHOW_TEXT, null, false);
			let node;
			while (node = walker.nextNode()) {
				if (node.textContent && node.textContent.includes(productName)) {
					const element = node.parentElement;
					if (element) {
						const rect = element.getBoundingClientRect();
						elements.push({
							tagName: element.tagName,
							className: element.className || '',
							id: element.id || '',
							offsetTop: rect.top + window.scrollY,
							offsetWidth: rect.width,
							offsetHeight: rect.height
						});
					}
				}
			}
		}
		return elements;
	} catch (error) {
		return [];
	}
})()`

// htmlContextScore inspects the live DOM for where the product name appears.
// Elements inside main-product containers score up, suggestion containers
// score down, and high placement and large size both add. Capped at 40.
func (d *Detector) htmlContextScore(ctx context.Context, page browser.Page, productName string) float64 {
	if productName == "" {
		// No name to locate; a small base score keeps the candidate in play.
		return 10
	}
	if page == nil {
		return 0
	}

	nameJSON, err := json.Marshal(productName)
	if err != nil {
		return 0
	}
	var elements []nameElement
	if err := page.Evaluate(ctx, fmt.Sprintf(nameElementsJS, nameJSON), &elements); err != nil {
		d.logger.Warn("html context analysis failed", zap.Error(err))
		return 0
	}

	score := 0.0
	for _, el := range elements {
		classesAndID := strings.ToLower(el.ClassName + " " + el.ID)

		for _, indicator := range d.cfg.MainProductIndicators {
			if strings.Contains(classesAndID, indicator) {
				score += 15
			}
		}
		for _, indicator := range d.cfg.SuggestionIndicators {
			if strings.Contains(classesAndID, indicator) {
				score -= 10
			}
		}

		switch {
		case el.OffsetTop < 500:
			score += 10
		case el.OffsetTop < 1000:
			score += 5
		}

		switch area := el.OffsetWidth * el.OffsetHeight; {
		case area > 100000:
			score += 8
		case area > 50000:
			score += 5
		}
	}
	return clamp(score, 0, 40)
}
