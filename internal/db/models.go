package db

import "time"

// Article maps pr.articles. Duplicate fetches of the same story collapse
// onto a single row via content_hash.
type Article struct {
	ArticleID     int64      `gorm:"column:article_id;primaryKey;autoIncrement"`
	Company       string     `gorm:"column:company;type:text;not null"`
	Title         string     `gorm:"column:title;type:text;not null"`
	Description   string     `gorm:"column:description;type:text;not null;default:''"`
	OriginalLink  string     `gorm:"column:original_link;type:text;not null;default:''"`
	MirrorLink    string     `gorm:"column:mirror_link;type:text;not null;default:''"`
	Outlet        string     `gorm:"column:outlet;type:text;not null;default:''"`
	Language      string     `gorm:"column:language;type:text;not null;default:und"`
	PublishedAt   *time.Time `gorm:"column:published_at;type:timestamptz"`
	PublishedDate time.Time  `gorm:"column:published_date;type:date;not null"`
	Sentiment     string     `gorm:"column:sentiment;type:text;not null;default:''"`
	IsTest        bool       `gorm:"column:is_test;type:boolean;not null;default:false"`
	ContentHash   string     `gorm:"column:content_hash;type:text;not null;unique"`
	SourceGroupID string     `gorm:"column:source_group_id;type:text;not null;default:''"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "pr.articles" }

// SourceGroup maps pr.source_groups. One row per syndication cluster.
type SourceGroup struct {
	GroupID            string    `gorm:"column:group_id;type:text;primaryKey"`
	CanonicalArticleID *int64    `gorm:"column:canonical_article_id;type:bigint"`
	RepostCount        int       `gorm:"column:repost_count;type:integer;not null;default:1"`
	FirstSeenAt        time.Time `gorm:"column:first_seen_at;type:timestamptz;not null;default:now()"`
	LastSeenAt         time.Time `gorm:"column:last_seen_at;type:timestamptz;not null;default:now()"`
}

func (SourceGroup) TableName() string { return "pr.source_groups" }

// SentimentResult maps pr.sentiment_results. The newest row per source
// group is the group's canonical sentiment.
type SentimentResult struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ArticleID     int64     `gorm:"column:article_id;type:bigint;not null"`
	SourceGroupID string    `gorm:"column:source_group_id;type:text;not null;default:''"`
	Score         float64   `gorm:"column:score;type:double precision;not null"`
	Label         string    `gorm:"column:label;type:text;not null"`
	Confidence    float64   `gorm:"column:confidence;type:double precision;not null"`
	Method        string    `gorm:"column:method;type:text;not null"`
	AnalyzedAt    time.Time `gorm:"column:analyzed_at;type:timestamptz;not null;default:now()"`
}

func (SentimentResult) TableName() string { return "pr.sentiment_results" }

// RiskPoint maps pr.risk_points. Live and replayed computations both land
// here, keyed uniquely on (ip_id, ts).
type RiskPoint struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	IPID           string    `gorm:"column:ip_id;type:text;not null"`
	TS             time.Time `gorm:"column:ts;type:timestamptz;not null"`
	RiskRaw        float64   `gorm:"column:risk_raw;type:double precision;not null"`
	RiskScore      float64   `gorm:"column:risk_score;type:double precision;not null"`
	SentimentComp  float64   `gorm:"column:s_comp;type:double precision;not null"`
	VolumeComp     float64   `gorm:"column:v_comp;type:double precision;not null"`
	ThemeComp      float64   `gorm:"column:t_comp;type:double precision;not null"`
	OutletComp     float64   `gorm:"column:m_comp;type:double precision;not null"`
	AlertLevel     string    `gorm:"column:alert_level;type:text;not null"`
	SampleSize     int       `gorm:"column:sample_size;type:integer;not null;default:0"`
	UncertainRatio float64   `gorm:"column:uncertain_ratio;type:double precision;not null;default:0"`
	QualityFlag    string    `gorm:"column:quality_flag;type:text;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (RiskPoint) TableName() string { return "pr.risk_points" }

// BurstEvent maps pr.burst_events. One row per polling mode transition.
type BurstEvent struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	IPID          string    `gorm:"column:ip_id;type:text;not null"`
	EventType     string    `gorm:"column:event_type;type:text;not null"`
	TriggerReason string    `gorm:"column:trigger_reason;type:text;not null"`
	RiskAtEvent   float64   `gorm:"column:risk_at_event;type:double precision;not null"`
	OccurredAt    time.Time `gorm:"column:occurred_at;type:timestamptz;not null;default:now()"`
}

func (BurstEvent) TableName() string { return "pr.burst_events" }

// SchedulerLog maps pr.scheduler_logs. One row per collector job run.
type SchedulerLog struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	JobID        string    `gorm:"column:job_id;type:text;not null"`
	RunTime      time.Time `gorm:"column:run_time;type:timestamptz;not null;default:now()"`
	Status       string    `gorm:"column:status;type:text;not null"`
	ErrorMessage string    `gorm:"column:error_message;type:text;not null;default:''"`
}

func (SchedulerLog) TableName() string { return "pr.scheduler_logs" }

func autoMigrateModels() []any {
	return []any{
		&Article{},
		&SourceGroup{},
		&SentimentResult{},
		&RiskPoint{},
		&BurstEvent{},
		&SchedulerLog{},
	}
}
