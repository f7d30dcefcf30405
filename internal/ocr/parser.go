package ocr

import (
	"regexp"
	"strings"

	"github.com/railmadad/complaint-api/internal/models"
)

// MaxRawTextLength bounds the OCR text kept alongside parsed fields.
const MaxRawTextLength = 2000

var (
	trainNumber5 = regexp.MustCompile(`\b(\d{5})\b`)
	trainNumber4 = regexp.MustCompile(`\b(\d{4})\b`)
	coachPattern = regexp.MustCompile(`(?i)\b(?:Coach|Bogie|Compartment)(?:\s*No\.?)?\s*[:\-#]?\s*([A-Z0-9][A-Z0-9\-]*)`)
	seatPattern  = regexp.MustCompile(`(?i)\b(?:Seat|Berth)(?:\s*No\.?)?\s*[:\-#]?\s*([A-Z0-9][A-Z0-9\-/]*)`)
	routePattern = regexp.MustCompile(`(?i)\b(?:From|Boarding)\b\s*[:\-]?\s*([A-Za-z][A-Za-z .]*?)\s+(?:To|Destination|Dest)\b\s*[:\-]?\s*([A-Za-z][A-Za-z .]*?)(?:\s+(?:Train|Coach|Seat|Berth|Date|Class|Quota|PNR|Dep|Arr)\b|[^A-Za-z .]|$)`)
	trainSuffix  = `(?:Express|Mail|Superfast|Special|Local|Rajdhani|Shatabdi|Duronto|Vande Bharat)`
)

// ParseTrainDetails pulls journey identifiers out of free OCR text. Fields
// that cannot be found are left nil.
func ParseTrainDetails(raw string) models.TrainDetails {
	text := normalize(raw)
	details := models.TrainDetails{Source: models.TrainSourceOCR}

	if m := trainNumber5.FindStringSubmatch(text); m != nil {
		details.TrainNumber = ptr(m[1])
	} else if m := trainNumber4.FindStringSubmatch(text); m != nil {
		details.TrainNumber = ptr(m[1])
	}

	if m := coachPattern.FindStringSubmatch(text); m != nil {
		details.CoachNumber = ptr(strings.ToUpper(m[1]))
	}
	if m := seatPattern.FindStringSubmatch(text); m != nil {
		details.SeatNumber = ptr(strings.ToUpper(m[1]))
	}
	if m := routePattern.FindStringSubmatch(text); m != nil {
		details.BoardingStation = ptr(m[1])
		details.DestinationStation = ptr(m[2])
	}

	if details.TrainNumber != nil {
		name := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(*details.TrainNumber) + `\s*[:\-/]?\s*([A-Za-z][A-Za-z ]*` + trainSuffix + `)\b`)
		if m := name.FindStringSubmatch(text); m != nil {
			details.TrainName = ptr(m[1])
		}
	}

	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		details.RawOCRText = ptr(truncateRunes(trimmed, MaxRawTextLength))
	}
	return details
}

// normalize joins lines with a separator that field patterns never cross.
func normalize(raw string) string {
	replacer := strings.NewReplacer("\r\n", " | ", "\n", " | ", "\r", " | ", "\t", " ")
	return replacer.Replace(raw)
}

func ptr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
