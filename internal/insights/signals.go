package insights

import (
	"sort"
	"strings"
)

// Summary is the compact view of a poll handed to the model. It carries
// friend names chosen by the creator and nothing else identifying.
type Summary struct {
	Friends     []string                  `json:"friends"`
	Dominance   map[string]int            `json:"dominance"`
	Categories  map[string]map[string]int `json:"categories,omitempty"`
	TopDog      Standing                  `json:"topDog"`
	Ghost       Standing                  `json:"ghost"`
	PairOdds    map[string]map[string]int `json:"pairOdds,omitempty"`
	Confessions []string                  `json:"confessions"`
}

// Standing is one friend's total vote weight.
type Standing struct {
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}

var noStanding = Standing{Name: "None"}

// Summarize derives the signal summary from raw vote aggregates.
func Summarize(votes []VoteAggregate, friends []Friend, confessions []string) Summary {
	names := make(map[string]string, len(friends))
	s := Summary{
		Friends:     make([]string, 0, len(friends)),
		Dominance:   make(map[string]int, len(friends)),
		Categories:  make(map[string]map[string]int),
		PairOdds:    make(map[string]map[string]int),
		Confessions: confessions,
	}
	for _, f := range friends {
		names[f.ID] = f.Name
		s.Friends = append(s.Friends, f.Name)
		s.Dominance[f.Name] = 0
	}
	if s.Confessions == nil {
		s.Confessions = []string{}
	}

	for _, v := range votes {
		if v.Option != "" {
			label := strings.TrimSuffix(v.Option, "%") + "%"
			if s.PairOdds[v.Question] == nil {
				s.PairOdds[v.Question] = make(map[string]int)
			}
			s.PairOdds[v.Question][label] += v.Count
			continue
		}

		name := v.FriendName
		if name == "" {
			name = names[v.FriendID]
		}
		if name == "" {
			continue
		}
		s.Dominance[name] += v.Count

		if v.Category != "" {
			if s.Categories[name] == nil {
				s.Categories[name] = make(map[string]int)
			}
			s.Categories[name][v.Category] += v.Count
		}
	}

	s.TopDog, s.Ghost = extremes(s.Dominance)
	return s
}

// extremes returns the highest and lowest standings, ties broken by name.
func extremes(dominance map[string]int) (top, bottom Standing) {
	if len(dominance) == 0 {
		return noStanding, noStanding
	}

	standings := make([]Standing, 0, len(dominance))
	for name, votes := range dominance {
		standings = append(standings, Standing{Name: name, Votes: votes})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Votes != standings[j].Votes {
			return standings[i].Votes > standings[j].Votes
		}
		return standings[i].Name < standings[j].Name
	})

	bottom = standings[len(standings)-1]
	for i := len(standings) - 1; i >= 0 && standings[i].Votes == bottom.Votes; i-- {
		bottom = standings[i]
	}
	return standings[0], bottom
}
