package migrations

import "jobharvest/common/database/schema"

var CreateHarvestedJobsTable = schema.Migration{
	Version:     1,
	Description: "Create harvested_jobs table",
	Up: `
		CREATE TABLE IF NOT EXISTS harvested_jobs (
			id UUID,
			job_id String,
			title String,
			location String,
			posted_date String,
			url String,
			extra String,
			harvested_at DateTime,
			PRIMARY KEY (id)
		) ENGINE = ReplacingMergeTree(harvested_at)
		PARTITION BY toYYYYMM(harvested_at)
		ORDER BY (id)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS harvested_jobs`,
}

// All lists every migration in version order.
var All = []schema.Migration{
	CreateHarvestedJobsTable,
}
