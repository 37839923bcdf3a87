package models

import "encoding/json"

// JobDetail is the subset of the job detail document kept for enrichment.
type JobDetail struct {
	JobID       string `json:"job_id"`
	TimeType    string `json:"time_type"`
	JobReqID    string `json:"job_req_id"`
	StartDate   string `json:"start_date"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (d JobDetail) MarshalBinary() ([]byte, error) {
	return json.Marshal(d)
}

func (d *JobDetail) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, d)
}
