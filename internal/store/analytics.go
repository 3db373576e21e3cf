package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ContraChat/internal/model"
)

// DateGroups partitions conversations by recency of their last activity.
// Every conversation lands in exactly one bucket.
type DateGroups struct {
	Today     []model.Conversation
	Yesterday []model.Conversation
	ThisWeek  []model.Conversation
	ThisMonth []model.Conversation
	Older     []model.Conversation
}

// GroupByDate buckets conversations by now - updatedAt against thresholds
// of 1, 2, 7, and 30 days. Buckets are mutually exclusive and exhaustive;
// input order within a bucket is preserved, nothing is sorted here.
func (s *Store) GroupByDate(convs []model.Conversation) DateGroups {
	now := s.now()
	var groups DateGroups
	for _, conv := range convs {
		age := now.Sub(conv.UpdatedAt)
		switch {
		case age < 24*time.Hour:
			groups.Today = append(groups.Today, conv)
		case age < 48*time.Hour:
			groups.Yesterday = append(groups.Yesterday, conv)
		case age < 7*24*time.Hour:
			groups.ThisWeek = append(groups.ThisWeek, conv)
		case age < 30*24*time.Hour:
			groups.ThisMonth = append(groups.ThisMonth, conv)
		default:
			groups.Older = append(groups.Older, conv)
		}
	}
	return groups
}

// TopicCount is one topic and how often it occurred.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Summary aggregates the analytics records inside a time window.
type Summary struct {
	Conversations        int           `json:"conversations"`
	TotalMessages        int           `json:"totalMessages"`
	TotalArgumentsViewed int           `json:"totalArgumentsViewed"`
	MeanDuration         time.Duration `json:"meanDuration"`
	TopTopics            []TopicCount  `json:"topTopics"`
}

// RecordAnalytics logs one analytics record for a conversation. Topics are
// the conversation's tags at record time.
func (s *Store) RecordAnalytics(conv *model.Conversation, argumentsViewed int) error {
	topics, err := json.Marshal(conv.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO analytics (conversation_id, recorded_at, message_count, arguments_viewed, duration_ms, topics)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, s.now().UnixMilli(), len(conv.Messages), argumentsViewed,
		conv.Duration().Milliseconds(), string(topics))
	if err != nil {
		return fmt.Errorf("failed to record analytics: %w", err)
	}
	return nil
}

// AnalyticsSummary scans records newer than windowDays and aggregates them.
// MeanDuration is zero when no records fall inside the window. Topics are
// ranked by occurrence count, top ten, with ties broken by a stable
// alphabetical order.
func (s *Store) AnalyticsSummary(windowDays int) (*Summary, error) {
	cutoff := s.now().UnixMilli() - int64(windowDays)*86400000
	rows, err := s.db.Query(
		`SELECT message_count, arguments_viewed, duration_ms, topics
		 FROM analytics WHERE recorded_at > ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	summary := &Summary{}
	topicCounts := make(map[string]int)
	var totalDuration int64

	for rows.Next() {
		var (
			messageCount    int
			argumentsViewed int
			durationMs      int64
			topicsRaw       string
		)
		if err := rows.Scan(&messageCount, &argumentsViewed, &durationMs, &topicsRaw); err != nil {
			return nil, fmt.Errorf("failed to scan analytics record: %w", err)
		}
		summary.Conversations++
		summary.TotalMessages += messageCount
		summary.TotalArgumentsViewed += argumentsViewed
		totalDuration += durationMs

		var topics []string
		if err := json.Unmarshal([]byte(topicsRaw), &topics); err != nil {
			s.logger.Warn("skipping unreadable analytics topics", "error", err)
			continue
		}
		for _, topic := range topics {
			topicCounts[topic]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if summary.Conversations > 0 {
		summary.MeanDuration = time.Duration(totalDuration/int64(summary.Conversations)) * time.Millisecond
	}
	summary.TopTopics = topTopics(topicCounts, 10)
	return summary, nil
}

func topTopics(counts map[string]int, limit int) []TopicCount {
	ranked := make([]TopicCount, 0, len(counts))
	for topic, count := range counts {
		ranked = append(ranked, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Topic < ranked[j].Topic
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
