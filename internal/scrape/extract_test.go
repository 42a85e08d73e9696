package scrape

import (
	"reflect"
	"testing"
)

// scheduleFixture mirrors the schedule page structure: month-heading slides,
// schedule-body slides paired with them positionally, day groups with a
// numeric indicator, and per-day item elements.
const scheduleFixture = `
<html><body>
<div class="swiper-container js-schedule-head">
  <div class="swiper-slide">2025.7</div>
  <div class="swiper-slide">2025.8</div>
</div>
<div class="swiper-container js-schedule-body">
  <div class="swiper-slide">
    <div class="p-schedule-body__item">
      <div class="data-sat"><div class="num">25</div></div>
      <div class="post__item">
        <div class="cat">配信</div>
        <p>12:00〜 [配信部] 生放送</p>
      </div>
      <div class="post__item">
        <p>グッズ情報公開</p>
      </div>
    </div>
    <div class="p-schedule-body__item">
      <div class="data"><div class="label">décor</div></div>
    </div>
  </div>
  <div class="swiper-slide">
    <div class="p-schedule-body__item">
      <div class="data-fri"><div class="num">1</div></div>
      <div class="post__item">
        <p>8:30〜 朝の配信</p>
      </div>
    </div>
  </div>
  <div class="swiper-slide">
    <div class="p-schedule-body__item">
      <div class="data"><div class="num">15</div></div>
      <div class="post__item">
        <p>イベント開催</p>
      </div>
    </div>
  </div>
</div>
</body></html>`

func TestExtractFixture(t *testing.T) {
	cands, err := Extract([]byte(scheduleFixture))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(cands) != 4 {
		t.Fatalf("got %d candidates, want 4: %+v", len(cands), cands)
	}

	type key struct {
		year, month, day int
		description      string
	}
	got := make([]key, 0, len(cands))
	for _, c := range cands {
		got = append(got, key{c.Year, c.Month, c.Day, c.Description})
	}
	want := []key{
		{2025, 7, 25, "12:00〜 [配信部] 生放送"},
		{2025, 7, 25, "グッズ情報公開"},
		{2025, 8, 1, "8:30〜 朝の配信"},
		// The third slide has no month heading of its own and reuses the
		// last known month.
		{2025, 8, 15, "イベント開催"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidates = %+v, want %+v", got, want)
	}

	if cats := cands[0].Categories; len(cats) != 1 || cats[0] != "配信" {
		t.Errorf("categories = %v, want [配信]", cats)
	}
	if cands[0].RawText == "" {
		t.Error("raw text is empty")
	}
}

func TestExtractDeterministic(t *testing.T) {
	first, err := Extract([]byte(scheduleFixture))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Extract([]byte(scheduleFixture))
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differed from first run", i)
		}
	}
}

func TestExtractNoMonthHeadings(t *testing.T) {
	cands, err := Extract([]byte(`<html><body><div class="swiper-container js-schedule-body"><div class="swiper-slide"></div></div></body></html>`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(cands) != 0 {
		t.Errorf("got %d candidates from markup without month headings", len(cands))
	}
}

func TestExtractDayGroupWithoutNumberSkipped(t *testing.T) {
	const markup = `
<html><body>
<div class="swiper-slide">2025.7</div>
<div class="swiper-container js-schedule-body">
  <div class="swiper-slide">
    <div class="p-schedule-body__item">
      <div class="data"><div class="num">not-a-day</div></div>
      <div class="post__item"><p>skipped</p></div>
    </div>
    <div class="p-schedule-body__item">
      <div class="data"><div class="num">7</div></div>
      <div class="post__item"><p>kept</p></div>
    </div>
  </div>
</div>
</body></html>`

	cands, err := Extract([]byte(markup))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(cands) != 1 || cands[0].Day != 7 || cands[0].Description != "kept" {
		t.Errorf("candidates = %+v, want only the parseable day group", cands)
	}
}
