package usecase

import (
	"sort"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

const defaultRRFK = 60

type fusedCandidate struct {
	fragment    domain.Fragment
	score       float64
	lexicalRank int // 1-based, 0 = absent from the lexical list
}

// fuseFragmentsRRF merges two ranked lists by reciprocal rank fusion: each
// candidate scores the sum of 1/(k+rank) over the lists it appears in, rank
// 1-based per list. Equal scores break by lexical rank ascending (absent
// sorts last), then by document ID, so the output is deterministic.
func fuseFragmentsRRF(lexical, vector []domain.Fragment, rrfK int) []domain.Fragment {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]fusedCandidate, len(lexical)+len(vector))

	for rank, fragment := range lexical {
		key := fragmentKey(fragment)
		candidate := acc[key]
		candidate.fragment = preferRicherFragment(candidate.fragment, fragment)
		candidate.fragment.LexicalScore = fragment.LexicalScore
		candidate.score += 1.0 / float64(rrfK+rank+1)
		candidate.lexicalRank = rank + 1
		acc[key] = candidate
	}
	for rank, fragment := range vector {
		key := fragmentKey(fragment)
		candidate := acc[key]
		candidate.fragment = preferRicherFragment(candidate.fragment, fragment)
		candidate.fragment.VectorScore = fragment.VectorScore
		candidate.score += 1.0 / float64(rrfK+rank+1)
		acc[key] = candidate
	}

	fused := make([]fusedCandidate, 0, len(acc))
	for _, candidate := range acc {
		candidate.fragment.FusedScore = candidate.score
		fused = append(fused, candidate)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		if fused[i].lexicalRank != fused[j].lexicalRank {
			if fused[i].lexicalRank == 0 {
				return false
			}
			if fused[j].lexicalRank == 0 {
				return true
			}
			return fused[i].lexicalRank < fused[j].lexicalRank
		}
		return fused[i].fragment.DocumentID < fused[j].fragment.DocumentID
	})

	out := make([]domain.Fragment, 0, len(fused))
	for _, candidate := range fused {
		out = append(out, candidate.fragment)
	}
	return out
}

func trimFragments(fragments []domain.Fragment, limit int) []domain.Fragment {
	if limit <= 0 || len(fragments) <= limit {
		return fragments
	}
	return fragments[:limit]
}

func fragmentKey(fragment domain.Fragment) string {
	if fragment.DocumentID != "" {
		return fragment.DocumentID
	}
	return fragment.Title + "|" + fragment.Text
}

func preferRicherFragment(current, candidate domain.Fragment) domain.Fragment {
	if current.DocumentID == "" && current.Text == "" {
		return candidate
	}
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.Title == "" && candidate.Title != "" {
		current.Title = candidate.Title
	}
	if current.SourceURL == "" && candidate.SourceURL != "" {
		current.SourceURL = candidate.SourceURL
	}
	if len(current.Fields) == 0 && len(candidate.Fields) > 0 {
		current.Fields = candidate.Fields
	}
	return current
}
