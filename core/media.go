package core

// MediaItem is the ephemeral progress record for one piece of media being
// consumed. Items are merged by ID or URL, never duplicated.
type MediaItem struct {
	ID             string    `json:"id"`
	Platform       string    `json:"platform"`
	Kind           MediaKind `json:"kind"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Progress       float64   `json:"progress"` // 0..1
	Duration       int64     `json:"duration,omitempty"`
	StartedAt      int64     `json:"startedAt"`
	UpdatedAt      int64     `json:"updatedAt"`
	WatchedSeconds int64     `json:"watchedSeconds"`
	Completed      bool      `json:"completed"`
	Thumbnail      string    `json:"thumbnail,omitempty"`
}

// Matches reports whether other refers to the same item, by ID or URL.
func (m *MediaItem) Matches(other *MediaItem) bool {
	if m.ID != "" && m.ID == other.ID {
		return true
	}
	return m.URL != "" && m.URL == other.URL
}

// Merge folds a progress update into m, keeping the earliest start and the
// accumulated watch time.
func (m *MediaItem) Merge(update *MediaItem) {
	if update.Title != "" {
		m.Title = update.Title
	}
	if update.Thumbnail != "" {
		m.Thumbnail = update.Thumbnail
	}
	if update.Duration > 0 {
		m.Duration = update.Duration
	}
	if update.Progress > m.Progress {
		m.Progress = update.Progress
	}
	if update.StartedAt > 0 && (m.StartedAt == 0 || update.StartedAt < m.StartedAt) {
		m.StartedAt = update.StartedAt
	}
	m.WatchedSeconds += update.WatchedSeconds
	if update.UpdatedAt > m.UpdatedAt {
		m.UpdatedAt = update.UpdatedAt
	}
	if update.Completed {
		m.Completed = true
	}
}

// Completion is one finished item queued for minting.
type Completion struct {
	Item        MediaItem `json:"item"`
	CompletedAt int64     `json:"completedAt"`
	DeployHash  string    `json:"deployHash,omitempty"`
}
