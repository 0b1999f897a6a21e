package racecard

import (
	"regexp"
	"strconv"

	"github.com/gaitlab/paddock/internal/domain/conditions"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
)

// Race metadata patterns cover both English and Japanese racecard text.
var (
	turfRE   = regexp.MustCompile(`(?i)(芝|turf|grass)`)
	dirtRE   = regexp.MustCompile(`(?i)(ダート|ダ\d|dirt|sand)`)
	metersRE = regexp.MustCompile(`(\d{3,4})\s*(?:m|ｍ|メートル)`)
	rightRE  = regexp.MustCompile(`(?i)(右|right)`)
	leftRE   = regexp.MustCompile(`(?i)(左|left)`)
	gradedRE = regexp.MustCompile(`(?i)(g1|g2|g3|重賞)`)
	classRE  = regexp.MustCompile(`(?i)(c1|c2|c3|1勝|2勝|3勝|条件)`)
	maidenRE = regexp.MustCompile(`(新馬|未勝利)`)
	heavyRE  = regexp.MustCompile(`(?i)(heavy|soft|sloppy|mud|不良|重馬場)`)
	firmRE   = regexp.MustCompile(`(?i)(firm|fast track|良馬場)`)
)

// ParseRaceConditions scans free racecard text for the declared race
// conditions. Anything the text does not state stays Unknown.
func ParseRaceConditions(text string) model.RaceConditions {
	cond := model.RaceConditions{
		Surface:       types.SurfaceUnknown,
		Footing:       types.FootingUnknown,
		TurnDirection: types.TurnUnknown,
		TrackFeatures: conditions.InferTrackFeatures(text),
	}

	if turfRE.MatchString(text) {
		cond.Surface = types.SurfaceTurf
	}
	if dirtRE.MatchString(text) {
		cond.Surface = types.SurfaceDirt
	}

	if m := metersRE.FindStringSubmatch(text); m != nil {
		if meters, err := strconv.Atoi(m[1]); err == nil {
			cond.DistanceMeters = meters
		}
	}

	if rightRE.MatchString(text) {
		cond.TurnDirection = types.TurnRight
	}
	if leftRE.MatchString(text) {
		cond.TurnDirection = types.TurnLeft
	}

	switch {
	case gradedRE.MatchString(text):
		cond.ClassLevel = "graded"
	case classRE.MatchString(text):
		cond.ClassLevel = "class"
	case maidenRE.MatchString(text):
		cond.ClassLevel = "maiden"
	}

	if heavyRE.MatchString(text) {
		cond.Footing = types.FootingHeavy
	}
	if firmRE.MatchString(text) {
		cond.Footing = types.FootingFirm
	}

	return cond
}
