package scrape

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/classify"
	appLog "github.com/megane2501h/Aikatsu-academy-Schedule/internal/log"
)

// monthHeaderRe matches the "YYYY.M" month heading texts.
var monthHeaderRe = regexp.MustCompile(`(\d{4})\.(\d{1,2})`)

// yearMonth is one (year, month) pair read from a month heading.
type yearMonth struct {
	year  int
	month int
}

// Extract walks the schedule page markup and produces candidate items in
// document order. Output is not yet sorted; the final (date, time) sort
// happens after classification.
//
// Page structure:
//   - month headings: swiper slides whose text matches "YYYY.M", in order
//   - schedule slides: ".swiper-container.js-schedule-body .swiper-slide",
//     paired positionally with the month headings; excess slides reuse the
//     last known month
//   - day groups: "div.p-schedule-body__item" with a numeric "div.num"
//     indicator inside a data element; groups without one are decorative
//     and silently skipped
//   - items: "div.post__item" with category tags and a description paragraph
func Extract(body []byte) ([]classify.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	months := extractMonths(doc)
	if len(months) == 0 {
		appLog.Warn("no month headings found in schedule markup")
		return nil, nil
	}

	slides := doc.Find(".swiper-container.js-schedule-body .swiper-slide")
	if slides.Length() == 0 {
		appLog.Warn("no schedule slides found in markup")
		return nil, nil
	}
	appLog.Info("schedule markup located", "months", len(months), "slides", slides.Length())

	var candidates []classify.Candidate
	slides.Each(func(slideIndex int, slide *goquery.Selection) {
		ym := months[len(months)-1]
		if slideIndex < len(months) {
			ym = months[slideIndex]
		} else {
			appLog.Warn("more slides than month headings; reusing last month",
				"slide", slideIndex, "year", ym.year, "month", ym.month)
		}

		slide.Find("div.p-schedule-body__item").Each(func(_ int, item *goquery.Selection) {
			day, ok := extractDay(item)
			if !ok {
				// Decorative or empty day group.
				return
			}

			item.Find("div.post__item").Each(func(_ int, post *goquery.Selection) {
				cand, ok := extractItem(post, ym.year, ym.month, day)
				if !ok {
					return
				}
				candidates = append(candidates, cand)
			})
		})
	})

	if len(candidates) == 0 {
		appLog.Warn("no schedule items extracted from markup")
	} else {
		appLog.Info("schedule items extracted", "count", len(candidates))
	}
	return candidates, nil
}

// extractMonths reads the ordered (year, month) list from the month-heading
// slides. Headings are leaf slides whose own text is the "YYYY.M" label;
// schedule-body slides contain element children and are not considered.
func extractMonths(doc *goquery.Document) []yearMonth {
	var months []yearMonth
	doc.Find("div.swiper-slide").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() != 0 {
			return
		}
		m := monthHeaderRe.FindStringSubmatch(s.Text())
		if m == nil {
			return
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		months = append(months, yearMonth{year: year, month: month})
	})
	return months
}

// extractDay reads the numeric day indicator from a day-group element.
func extractDay(item *goquery.Selection) (int, bool) {
	data := item.Find(`div[class*="data"]`).First()
	if data.Length() == 0 {
		return 0, false
	}
	num := data.Find("div.num").First()
	if num.Length() == 0 {
		return 0, false
	}
	day, err := strconv.Atoi(strings.TrimSpace(num.Text()))
	if err != nil {
		return 0, false
	}
	return day, true
}

// extractItem reads one schedule item element into a candidate. Items
// without a description paragraph are skipped.
func extractItem(post *goquery.Selection, year, month, day int) (classify.Candidate, bool) {
	desc := post.Find("p").First()
	if desc.Length() == 0 {
		return classify.Candidate{}, false
	}

	var categories []string
	post.Find("div.cat").Each(func(_ int, cat *goquery.Selection) {
		categories = append(categories, strings.TrimSpace(cat.Text()))
	})

	return classify.Candidate{
		Year:        year,
		Month:       month,
		Day:         day,
		RawText:     strings.TrimSpace(post.Text()),
		Description: strings.TrimSpace(desc.Text()),
		Categories:  categories,
	}, true
}
