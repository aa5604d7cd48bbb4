package progress

import "strings"

// DefaultTotalComponents is the number of components in the course.
const DefaultTotalComponents = 23

type CategorySummary struct {
	CategoryID          string  `json:"categoryId"`
	ComponentsCompleted int     `json:"componentsCompleted"`
	TotalComponents     int     `json:"totalComponents"`
	AverageScore        float64 `json:"averageScore"`
	TotalTimeSpent      int64   `json:"totalTimeSpent"`
}

type OverallSummary struct {
	TotalCompleted  int     `json:"totalCompleted"`
	TotalComponents int     `json:"totalComponents"`
	Percentage      float64 `json:"percentage"`
	AverageScore    float64 `json:"averageScore"`
}

// Category aggregates the components whose ID starts with categoryID.
func Category(all map[string]Record, categoryID string) CategorySummary {
	s := CategorySummary{CategoryID: categoryID}

	var scores []float64
	for _, r := range all {
		if !strings.HasPrefix(r.ComponentID, categoryID) {
			continue
		}
		s.TotalComponents++
		s.TotalTimeSpent += r.TimeSpent
		if r.Completed {
			s.ComponentsCompleted++
		}
		if r.Score != nil {
			scores = append(scores, *r.Score)
		}
	}

	s.AverageScore = average(scores)
	return s
}

// Overall aggregates all records against total components. A total <= 0 uses DefaultTotalComponents.
func Overall(all map[string]Record, total int) OverallSummary {
	if total <= 0 {
		total = DefaultTotalComponents
	}
	s := OverallSummary{TotalComponents: total}

	var scores []float64
	for _, r := range all {
		if r.Completed {
			s.TotalCompleted++
		}
		if r.Score != nil {
			scores = append(scores, *r.Score)
		}
	}

	s.Percentage = float64(s.TotalCompleted) / float64(total) * 100
	s.AverageScore = average(scores)
	return s
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
