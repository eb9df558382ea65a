package domain

// FortuneCategory is the categorical reading attached to a stroke count.
type FortuneCategory string

const (
	FortuneGreatBlessing FortuneCategory = "大吉"
	FortuneMidBlessing   FortuneCategory = "中吉"
	FortuneBlessing      FortuneCategory = "吉"
	FortuneCurse         FortuneCategory = "凶"
	FortuneMidCurse      FortuneCategory = "中凶"
	FortuneGreatCurse    FortuneCategory = "大凶"
	// FortuneUnknown is returned when a stroke count has no table entry.
	FortuneUnknown FortuneCategory = "不明"
)

// FortuneCategories lists the categories a complete fortune table may use.
var FortuneCategories = []FortuneCategory{
	FortuneGreatBlessing,
	FortuneMidBlessing,
	FortuneBlessing,
	FortuneCurse,
	FortuneMidCurse,
	FortuneGreatCurse,
}

// Valid reports whether c is one of the six table categories.
func (c FortuneCategory) Valid() bool {
	for _, known := range FortuneCategories {
		if c == known {
			return true
		}
	}
	return false
}

// GradeKey identifies one of the five grades derived from a name.
type GradeKey string

const (
	GradeHeaven        GradeKey = "heaven"
	GradePersonality   GradeKey = "personality"
	GradeEarth         GradeKey = "earth"
	GradeOuterRelation GradeKey = "outer"
	GradeTotal         GradeKey = "total"
)

// GradeCategory is the scored reading for a single grade.
type GradeCategory struct {
	Key         GradeKey        `json:"key"`
	Name        string          `json:"name"`
	StrokeCount int             `json:"strokeCount"`
	Reduced     int             `json:"reduced"`
	Fortune     FortuneCategory `json:"fortune"`
	Score       int             `json:"score"`
	Explanation string          `json:"explanation"`
}

// FiveGradeResult captures the five grades computed for a surname and given name.
type FiveGradeResult struct {
	SurnameSum    int             `json:"surnameSum"`
	GivenNameSum  int             `json:"givenNameSum"`
	Heaven        int             `json:"heaven"`
	Personality   int             `json:"personality"`
	Earth         int             `json:"earth"`
	OuterRelation int             `json:"outerRelation"`
	Total         int             `json:"total"`
	Categories    []GradeCategory `json:"categories"`
	OverallScore  int             `json:"overallScore"`
}

// Category returns the scored reading for key.
func (r FiveGradeResult) Category(key GradeKey) (GradeCategory, bool) {
	for _, c := range r.Categories {
		if c.Key == key {
			return c, true
		}
	}
	return GradeCategory{}, false
}

// Star is one of the six stars of six-star astrology.
type Star string

const (
	StarSaturn  Star = "土星"
	StarVenus   Star = "金星"
	StarMars    Star = "火星"
	StarMercury Star = "水星"
	StarJupiter Star = "木星"
	StarUranus  Star = "天王星"
)

// Polarity is the +/- orientation paired with a star.
type Polarity string

const (
	PolarityPlus  Polarity = "+"
	PolarityMinus Polarity = "-"
)

// Element is one of the five classical elements.
type Element string

const (
	ElementWood  Element = "木"
	ElementFire  Element = "火"
	ElementEarth Element = "土"
	ElementMetal Element = "金"
	ElementWater Element = "水"
)

// DestinyRecord is a single day of the authoritative destiny dataset.
type DestinyRecord struct {
	Year          int      `json:"year"`
	Month         int      `json:"month"`
	Day           int      `json:"day"`
	DestinyNumber int      `json:"destinyNumber"`
	Star          Star     `json:"star"`
	Polarity      Polarity `json:"polarity"`
	Zodiac        string   `json:"zodiac"`
	Element       Element  `json:"element"`
}

// StarType renders the "{star}人{polarity}" label for the record.
func (r DestinyRecord) StarType() string {
	return StarType(r.Star, r.Polarity)
}

// StarType renders the "{star}人{polarity}" label.
func StarType(star Star, polarity Polarity) string {
	if star == "" {
		return ""
	}
	return string(star) + "人" + string(polarity)
}

// SixStarSource identifies where a six-star result came from.
type SixStarSource string

const (
	SixStarSourceDataset SixStarSource = "dataset"
	SixStarSourceFormula SixStarSource = "formula"
	SixStarSourceNone    SixStarSource = "none"
)

const (
	// DatasetConfidence is attached to results read from the destiny dataset.
	DatasetConfidence = 1.0
	// FormulaConfidence is attached to results derived by the closed-form calculation.
	FormulaConfidence = 0.3
)

// SixStarResult is the six-star reading for a birth date.
type SixStarResult struct {
	StarType      string        `json:"starType"`
	Star          Star          `json:"star,omitempty"`
	Polarity      Polarity      `json:"polarity,omitempty"`
	Confidence    float64       `json:"confidence"`
	Source        SixStarSource `json:"source"`
	DestinyNumber int           `json:"destinyNumber,omitempty"`
	StarNumber    int           `json:"starNumber,omitempty"`
	AdjustedYear  int           `json:"adjustedYear,omitempty"`
	Zodiac        string        `json:"zodiac,omitempty"`
	Element       Element       `json:"element,omitempty"`
}

// SixStarComparison reports whether the dataset and the formula agree for a date.
type SixStarComparison struct {
	Date        BirthDate      `json:"date"`
	Dataset     *SixStarResult `json:"dataset,omitempty"`
	Formula     SixStarResult  `json:"formula"`
	Match       bool           `json:"match"`
	Differences []string       `json:"differences,omitempty"`
}
