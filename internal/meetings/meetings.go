// Package meetings defines the closed set of FOMC meetings available for
// validation and the policy-stance score scale.
package meetings

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnsupportedMeeting = errors.New("unsupported meeting")

// Meeting describes one recognized meeting. YMD is the canonical identifier
// ("20081216"); everything else is display metadata.
type Meeting struct {
	YMD             string
	DisplayName     string
	Era             string
	HasAlternatives bool
}

var targetMeetings = map[string]Meeting{
	"19791006": {
		YMD:             "19791006",
		DisplayName:     "October 6, 1979 (Volcker's Saturday Night Special)",
		Era:             "Volcker",
		HasAlternatives: false,
	},
	"19940816": {
		YMD:             "19940816",
		DisplayName:     "August 16, 1994 (Greenspan tightening cycle)",
		Era:             "Greenspan",
		HasAlternatives: true,
	},
	"20081216": {
		YMD:             "20081216",
		DisplayName:     "December 16, 2008 (Financial crisis ZLB)",
		Era:             "Bernanke",
		HasAlternatives: true,
	},
	"20110809": {
		YMD:             "20110809",
		DisplayName:     "August 9, 2011 (Extended period debate)",
		Era:             "Bernanke",
		HasAlternatives: true,
	},
	"20190731": {
		YMD:             "20190731",
		DisplayName:     "July 31, 2019 (Powell mid-cycle cut)",
		Era:             "Powell",
		HasAlternatives: true,
	},
}

// ScoreScale maps the -3..+3 policy stance score to its label.
var ScoreScale = map[int]string{
	-3: "Strongly dovish (maximum accommodation)",
	-2: "Moderately dovish",
	-1: "Slightly dovish",
	0:  "Neutral",
	1:  "Slightly hawkish",
	2:  "Moderately hawkish",
	3:  "Strongly hawkish (maximum tightening)",
}

func IsRecognized(ymd string) bool {
	_, ok := targetMeetings[ymd]
	return ok
}

// Get returns the meeting for ymd or ErrUnsupportedMeeting.
func Get(ymd string) (Meeting, error) {
	meeting, ok := targetMeetings[ymd]
	if !ok {
		return Meeting{}, fmt.Errorf("%w: %q", ErrUnsupportedMeeting, ymd)
	}
	return meeting, nil
}

// All returns the recognized meetings in chronological (ymd) order.
func All() []Meeting {
	items := make([]Meeting, 0, len(targetMeetings))
	for _, meeting := range targetMeetings {
		items = append(items, meeting)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].YMD < items[j].YMD })
	return items
}

// ValidScore reports whether score is within the -3..+3 scale.
func ValidScore(score int) bool {
	return score >= -3 && score <= 3
}
