package content

import (
	"golang.org/x/text/language"
)

// Difficulty controls vocabulary, length and depth of generated content
// for the same article.
type Difficulty string

const (
	DifficultyEasy Difficulty = "easy"
	DifficultyMid  Difficulty = "mid"
	DifficultyHard Difficulty = "hard"
)

// Difficulties lists the canonical levels in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMid, DifficultyHard}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMid, DifficultyHard:
		return true
	}
	return false
}

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageChinese Language = "zh"
)

// Languages lists the languages referenced by the summary tables.
var Languages = []Language{LanguageEnglish, LanguageChinese}

func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageChinese
}

// Tag returns the BCP 47 tag for the language.
func (l Language) Tag() language.Tag {
	switch l {
	case LanguageChinese:
		return language.Chinese
	default:
		return language.English
	}
}

// Attitude tags attached to perspectives.
const (
	AttitudePositive = "positive"
	AttitudeNeutral  = "neutral"
	AttitudeNegative = "negative"
)

func ValidAttitude(a string) bool {
	return a == AttitudePositive || a == AttitudeNeutral || a == AttitudeNegative
}

// Payload is the enrichment document returned by the content-generation
// service for one article. The three difficulty sections carry the full
// set of enrichments; CN is a Chinese-language rendering of the hard tier
// and carries only title and summary.
type Payload struct {
	Easy *Section `json:"easy"`
	Mid  *Section `json:"mid"`
	Hard *Section `json:"hard"`
	CN   *Section `json:"CN"`
}

// Section returns the section for a difficulty level, nil if absent.
func (p *Payload) Section(d Difficulty) *Section {
	switch d {
	case DifficultyEasy:
		return p.Easy
	case DifficultyMid:
		return p.Mid
	case DifficultyHard:
		return p.Hard
	}
	return nil
}

type Section struct {
	Title             string        `json:"title"`
	Summary           string        `json:"summary"`
	Keywords          []Keyword     `json:"keywords,omitempty"`
	Questions         []Question    `json:"questions,omitempty"`
	BackgroundReading []string      `json:"background_reading,omitempty"`
	Perspectives      []Perspective `json:"perspectives,omitempty"`
}

type Keyword struct {
	Term        string `json:"term"`
	Explanation string `json:"explanation"`
}

type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

type Perspective struct {
	Author   string `json:"author"`
	Attitude string `json:"attitude"`
	Opinion  string `json:"opinion"`
}
