// Package classifier implements the system-label ensemble: a
// margin-based linear model and a multinomial naive Bayes model fitted
// over the same term vectors, with their votes combined at prediction
// time.
package classifier

import (
	"math"
	"sort"

	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/internal/text"
)

const perceptronEpochs = 10

// State is the fitted ensemble. Immutable after Fit, safe for
// concurrent readers. An untrained state predicts ("Unknown", 0.0)
// so callers never block on classifier readiness during cold start.
type State struct {
	Trained    bool           `json:"trained"`
	Labels     []string       `json:"labels"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`

	// Multinomial naive Bayes with Laplace smoothing.
	LogPriors  map[string]float64         `json:"log_priors"`
	TermCounts map[string]map[int]float64 `json:"term_counts"`
	TotalTerms map[string]float64         `json:"total_terms"`

	// One-vs-rest perceptron weights over normalized tf-idf vectors.
	Weights map[string]map[int]float64 `json:"weights"`
	Bias    map[string]float64         `json:"bias"`

	// DisagreementPenalty reduces confidence when the two models vote
	// for different labels.
	DisagreementPenalty float64 `json:"disagreement_penalty"`

	// TrainAccuracy is the per-label resubstitution accuracy estimate
	// recorded at fit time.
	TrainAccuracy map[string]float64 `json:"train_accuracy"`
}

// Fit trains both classifiers over the cases that carry a known system
// label. It returns the untrained state when fewer than minCases
// labeled cases exist or fewer than two distinct labels are present:
// a single-class classifier is undefined and must not be fit.
func Fit(cases []models.Case, minCases int, disagreementPenalty float64) *State {
	labeled := make([]models.Case, 0, len(cases))
	labelSet := make(map[string]struct{})
	for _, c := range cases {
		if c.SystemType == "" || c.SystemType == models.SystemUnknown {
			continue
		}
		labeled = append(labeled, c)
		labelSet[c.SystemType] = struct{}{}
	}
	if len(labeled) < minCases || len(labelSet) < 2 {
		return &State{DisagreementPenalty: disagreementPenalty}
	}

	labels := make([]string, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	docTerms := make([]map[string]int, len(labeled))
	df := make(map[string]int)
	for i, c := range labeled {
		counts := text.TermCounts(c.ProblemDescription)
		docTerms[i] = counts
		for term := range counts {
			df[term]++
		}
	}

	vocab := make(map[string]int, len(df))
	idf := make([]float64, 0, len(df))
	n := float64(len(labeled))
	for term, freq := range df {
		vocab[term] = len(idf)
		idf = append(idf, math.Log((1+n)/(1+float64(freq)))+1)
	}

	s := &State{
		Trained:             true,
		Labels:              labels,
		Vocabulary:          vocab,
		IDF:                 idf,
		LogPriors:           make(map[string]float64, len(labels)),
		TermCounts:          make(map[string]map[int]float64, len(labels)),
		TotalTerms:          make(map[string]float64, len(labels)),
		Weights:             make(map[string]map[int]float64, len(labels)),
		Bias:                make(map[string]float64, len(labels)),
		DisagreementPenalty: disagreementPenalty,
	}

	s.fitNaiveBayes(labeled, docTerms)
	s.fitPerceptron(labeled, docTerms)
	s.estimateTrainAccuracy(labeled)

	return s
}

func (s *State) fitNaiveBayes(labeled []models.Case, docTerms []map[string]int) {
	labelDocs := make(map[string]int, len(s.Labels))
	for _, l := range s.Labels {
		s.TermCounts[l] = make(map[int]float64)
	}

	for i, c := range labeled {
		labelDocs[c.SystemType]++
		for term, tf := range docTerms[i] {
			col := s.Vocabulary[term]
			s.TermCounts[c.SystemType][col] += float64(tf)
			s.TotalTerms[c.SystemType] += float64(tf)
		}
	}

	n := float64(len(labeled))
	for _, l := range s.Labels {
		s.LogPriors[l] = math.Log(float64(labelDocs[l]) / n)
	}
}

func (s *State) fitPerceptron(labeled []models.Case, docTerms []map[string]int) {
	for _, l := range s.Labels {
		s.Weights[l] = make(map[int]float64)
	}

	vectors := make([]map[int]float64, len(labeled))
	for i := range labeled {
		vectors[i] = s.project(docTerms[i])
	}

	// Fixed iteration order keeps training deterministic, which the
	// snapshot round-trip guarantee depends on.
	for epoch := 0; epoch < perceptronEpochs; epoch++ {
		mistakes := 0
		for i, c := range labeled {
			predicted, _ := s.perceptronScore(vectors[i])
			if predicted == c.SystemType {
				continue
			}
			mistakes++
			for col, w := range vectors[i] {
				s.Weights[c.SystemType][col] += w
				s.Weights[predicted][col] -= w
			}
			s.Bias[c.SystemType]++
			s.Bias[predicted]--
		}
		if mistakes == 0 {
			break
		}
	}
}

func (s *State) estimateTrainAccuracy(labeled []models.Case) {
	correct := make(map[string]int)
	total := make(map[string]int)
	for _, c := range labeled {
		total[c.SystemType]++
		if label, _ := s.Predict(c.ProblemDescription); label == c.SystemType {
			correct[c.SystemType]++
		}
	}
	s.TrainAccuracy = make(map[string]float64, len(total))
	for l, t := range total {
		s.TrainAccuracy[l] = float64(correct[l]) / float64(t)
	}
}

// Predict runs both classifiers and combines their votes. On
// agreement the confidence is the mean of each model's own certainty;
// on disagreement the naive Bayes label wins (it degrades more
// gracefully on small samples) and the confidence is reduced by the
// disagreement penalty.
func (s *State) Predict(problemText string) (string, float64) {
	if !s.IsTrained() {
		return models.SystemUnknown, 0.0
	}

	counts := text.TermCounts(problemText)

	nbLabel, nbProb := s.naiveBayesScore(counts)
	linLabel, linCert := s.perceptronScore(s.project(counts))

	if nbLabel == linLabel {
		return nbLabel, (nbProb + linCert) / 2
	}
	return nbLabel, ((nbProb + linCert) / 2) * (1 - s.DisagreementPenalty)
}

// IsTrained reports whether Fit produced a usable ensemble.
func (s *State) IsTrained() bool {
	return s != nil && s.Trained
}

// naiveBayesScore returns the max-posterior label and its posterior
// probability under the multinomial model.
func (s *State) naiveBayesScore(counts map[string]int) (string, float64) {
	vocabSize := float64(len(s.IDF))
	logPosts := make([]float64, len(s.Labels))
	for i, l := range s.Labels {
		lp := s.LogPriors[l]
		for term, tf := range counts {
			col, ok := s.Vocabulary[term]
			if !ok {
				continue
			}
			likelihood := (s.TermCounts[l][col] + 1) / (s.TotalTerms[l] + vocabSize)
			lp += float64(tf) * math.Log(likelihood)
		}
		logPosts[i] = lp
	}

	best, maxLog := 0, logPosts[0]
	for i, lp := range logPosts {
		if lp > maxLog {
			best, maxLog = i, lp
		}
	}

	// Softmax normalization anchored at the max keeps the exponentials
	// well conditioned.
	var denom float64
	for _, lp := range logPosts {
		denom += math.Exp(lp - maxLog)
	}
	return s.Labels[best], 1 / denom
}

// perceptronScore returns the argmax label and a margin-derived
// certainty: the logistic of the gap between the top two activations.
func (s *State) perceptronScore(vec map[int]float64) (string, float64) {
	top, second := math.Inf(-1), math.Inf(-1)
	best := s.Labels[0]
	for _, l := range s.Labels {
		score := s.Bias[l]
		for col, w := range vec {
			score += s.Weights[l][col] * w
		}
		if score > top {
			second = top
			top, best = score, l
		} else if score > second {
			second = score
		}
	}
	margin := top - second
	return best, 1 / (1 + math.Exp(-margin))
}

// project builds the normalized tf-idf vector the perceptron consumes.
func (s *State) project(counts map[string]int) map[int]float64 {
	vec := make(map[int]float64)
	var norm float64
	for term, tf := range counts {
		col, ok := s.Vocabulary[term]
		if !ok {
			continue
		}
		w := float64(tf) * s.IDF[col]
		vec[col] = w
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for col, w := range vec {
		vec[col] = w / norm
	}
	return vec
}
