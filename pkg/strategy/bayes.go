package strategy

import (
	"context"
	"crypto/sha1"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/civitas/spamguard/pkg/store"
)

// BayesConfig holds the tunables of the naive-Bayes strategy.
type BayesConfig struct {
	// KeyPrefix namespaces this analyzer's counters in the backing store.
	KeyPrefix string

	// Categories seeds the set of categories considered during
	// classification. Training a new category extends the set for this
	// process; peers sharing an external store discover categories
	// through configuration only.
	Categories []string

	MinTokenLength int
	MaxTokenLength int

	// Smoothing is the Laplace smoothing factor added to every token
	// count so unseen tokens never zero out a category.
	Smoothing float64
}

// DefaultBayesConfig returns the default Bayes tunables.
func DefaultBayesConfig() BayesConfig {
	return BayesConfig{
		KeyPrefix:      "spamguard:bayes",
		Categories:     []string{CategoryHam, CategorySpam},
		MinTokenLength: 3,
		MaxTokenLength: 32,
		Smoothing:      1.0,
	}
}

// Bayes is a naive-Bayes classifier whose per-category token counters
// live in a pluggable backing store. Writers are serialized per
// instance; with a shared store, counter updates are atomic deltas and
// the distinct-token bookkeeping tolerates rare races between peers.
type Bayes struct {
	store     store.Store
	config    BayesConfig
	tokenizer Tokenizer

	mu         sync.RWMutex
	categories map[string]struct{}
}

// NewBayes creates a Bayes strategy over the given backing store.
func NewBayes(st store.Store, config BayesConfig) *Bayes {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "spamguard:bayes"
	}
	if config.MinTokenLength == 0 {
		config.MinTokenLength = 3
	}
	if config.MaxTokenLength == 0 {
		config.MaxTokenLength = 32
	}
	if config.Smoothing <= 0 {
		config.Smoothing = 1.0
	}
	if len(config.Categories) == 0 {
		config.Categories = []string{CategoryHam, CategorySpam}
	}

	categories := make(map[string]struct{}, len(config.Categories))
	for _, category := range config.Categories {
		categories[category] = struct{}{}
	}

	return &Bayes{
		store:  st,
		config: config,
		tokenizer: Tokenizer{
			MinLength: config.MinTokenLength,
			MaxLength: config.MaxTokenLength,
		},
		categories: categories,
	}
}

// Train increments the per-token counters of category by the token
// frequencies of text.
func (b *Bayes) Train(ctx context.Context, category, text string) error {
	tokens := b.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, token := range tokens {
		count, err := b.store.Increment(ctx, b.tokenKey(category, token), 1)
		if err != nil {
			return fmt.Errorf("train %q: %w", category, err)
		}
		if count == 1 {
			if _, err := b.store.Increment(ctx, b.vocabKey(category), 1); err != nil {
				return fmt.Errorf("train %q: %w", category, err)
			}
		}
	}

	if _, err := b.store.Increment(ctx, b.tokensKey(category), int64(len(tokens))); err != nil {
		return fmt.Errorf("train %q: %w", category, err)
	}
	if _, err := b.store.Increment(ctx, b.learnsKey(category), 1); err != nil {
		return fmt.Errorf("train %q: %w", category, err)
	}

	b.categories[category] = struct{}{}
	return nil
}

// Untrain decrements the counters Train incremented, clamping at zero.
// Tokens whose count reaches zero are pruned; classification treats
// pruned and zero-count tokens identically.
func (b *Bayes) Untrain(ctx context.Context, category, text string) error {
	tokens := b.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var removed int64
	for _, token := range tokens {
		key := b.tokenKey(category, token)
		count, err := b.store.Increment(ctx, key, -1)
		if err != nil {
			return fmt.Errorf("untrain %q: %w", category, err)
		}

		switch {
		case count > 0:
			removed++
		case count == 0:
			removed++
			if err := b.store.Delete(ctx, key); err != nil {
				return fmt.Errorf("untrain %q: %w", category, err)
			}
			if err := b.decrementClamped(ctx, b.vocabKey(category), 1); err != nil {
				return fmt.Errorf("untrain %q: %w", category, err)
			}
		default:
			// The token was never trained; undo the decrement.
			if err := b.store.Delete(ctx, key); err != nil {
				return fmt.Errorf("untrain %q: %w", category, err)
			}
		}
	}

	if err := b.decrementClamped(ctx, b.tokensKey(category), removed); err != nil {
		return fmt.Errorf("untrain %q: %w", category, err)
	}
	if removed > 0 {
		if err := b.decrementClamped(ctx, b.learnsKey(category), 1); err != nil {
			return fmt.Errorf("untrain %q: %w", category, err)
		}
	}

	return nil
}

// Classify computes, for every known category, the normalized
// probability that text belongs to it. A model with no training data
// returns empty Scores.
func (b *Bayes) Classify(ctx context.Context, text string) (Scores, error) {
	tokens := b.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return Scores{}, nil
	}

	b.mu.RLock()
	categories := make([]string, 0, len(b.categories))
	for category := range b.categories {
		categories = append(categories, category)
	}
	b.mu.RUnlock()
	sort.Strings(categories)

	type model struct {
		category string
		learns   int64
		tokens   int64
		vocab    int64
	}

	var (
		models      []model
		totalLearns int64
	)

	for _, category := range categories {
		learns, err := b.store.Get(ctx, b.learnsKey(category))
		if err != nil {
			return nil, fmt.Errorf("classify: %w", err)
		}
		if learns <= 0 {
			continue
		}

		total, err := b.store.Get(ctx, b.tokensKey(category))
		if err != nil {
			return nil, fmt.Errorf("classify: %w", err)
		}
		vocab, err := b.store.Get(ctx, b.vocabKey(category))
		if err != nil {
			return nil, fmt.Errorf("classify: %w", err)
		}

		models = append(models, model{category: category, learns: learns, tokens: total, vocab: vocab})
		totalLearns += learns
	}

	if len(models) == 0 || totalLearns == 0 {
		return Scores{}, nil
	}

	// Log-space accumulation so long texts cannot underflow.
	logProbs := make([]float64, len(models))
	maxLog := math.Inf(-1)

	for i, m := range models {
		keys := make([]string, len(tokens))
		for j, token := range tokens {
			keys[j] = b.tokenKey(m.category, token)
		}

		counts, err := b.store.GetMulti(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("classify: %w", err)
		}

		denominator := float64(m.tokens) + b.config.Smoothing*float64(m.vocab)
		if denominator <= 0 {
			denominator = b.config.Smoothing
		}

		logProb := math.Log(float64(m.learns) / float64(totalLearns))
		for _, key := range keys {
			logProb += math.Log((float64(counts[key]) + b.config.Smoothing) / denominator)
		}

		logProbs[i] = logProb
		if logProb > maxLog {
			maxLog = logProb
		}
	}

	scores := make(Scores, len(models))
	var sum float64
	for i, m := range models {
		p := math.Exp(logProbs[i] - maxLog)
		scores[m.category] = p
		sum += p
	}
	for category := range scores {
		scores[category] /= sum
	}

	return scores, nil
}

// Reset discards all counters under this analyzer's key prefix.
func (b *Bayes) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.DeletePrefix(ctx, b.config.KeyPrefix+":"); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	b.categories = make(map[string]struct{}, len(b.config.Categories))
	for _, category := range b.config.Categories {
		b.categories[category] = struct{}{}
	}

	return nil
}

// Stats reports the counter totals of one category.
func (b *Bayes) Stats(ctx context.Context, category string) (learns, tokens, vocab int64, err error) {
	learns, err = b.store.Get(ctx, b.learnsKey(category))
	if err != nil {
		return 0, 0, 0, err
	}
	tokens, err = b.store.Get(ctx, b.tokensKey(category))
	if err != nil {
		return 0, 0, 0, err
	}
	vocab, err = b.store.Get(ctx, b.vocabKey(category))
	if err != nil {
		return 0, 0, 0, err
	}
	return learns, tokens, vocab, nil
}

// Categories returns the categories this instance currently classifies
// against, sorted.
func (b *Bayes) Categories() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	categories := make([]string, 0, len(b.categories))
	for category := range b.categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// Close closes the backing store.
func (b *Bayes) Close() error {
	return b.store.Close()
}

func (b *Bayes) decrementClamped(ctx context.Context, key string, delta int64) error {
	if delta <= 0 {
		return nil
	}

	value, err := b.store.Increment(ctx, key, -delta)
	if err != nil {
		return err
	}
	if value < 0 {
		return b.store.Set(ctx, key, 0)
	}

	return nil
}

func (b *Bayes) tokenKey(category, token string) string {
	// Hash oversized tokens to keep store keys bounded.
	if len(token) > 64 {
		token = fmt.Sprintf("h_%x", sha1.Sum([]byte(token)))
	}
	return fmt.Sprintf("%s:%s:tok:%s", b.config.KeyPrefix, category, token)
}

func (b *Bayes) tokensKey(category string) string {
	return fmt.Sprintf("%s:%s:tokens", b.config.KeyPrefix, category)
}

func (b *Bayes) vocabKey(category string) string {
	return fmt.Sprintf("%s:%s:vocab", b.config.KeyPrefix, category)
}

func (b *Bayes) learnsKey(category string) string {
	return fmt.Sprintf("%s:%s:learns", b.config.KeyPrefix, category)
}

var _ Strategy = (*Bayes)(nil)
