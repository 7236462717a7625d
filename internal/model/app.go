package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AppRecord はカタログに掲載されるアプリを表す。
// 静的JSON（loadData.json）から読み込まれ、スコープ内では読み取り専用。
type AppRecord struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	CompanyName string `json:"companyName"`
	Category    string `json:"category"`
	Image       string `json:"image"`
	Downloads   Metric `json:"downloads"`
	RatingAvg   Metric `json:"ratingAvg"`
	Reviews     Metric `json:"reviews"`
	Size        Metric `json:"size"`
	Description string `json:"description"`
}

// Metric は表示専用の数値項目。
// データファイルでは "9M" のような文字列と 4.5 のような数値が混在するため、どちらも受け付ける。
type Metric string

// UnmarshalJSON は文字列・数値・nullのいずれかをMetricとして読み込む。
func (m *Metric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Metric(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("metric must be a string or number: %s", string(data))
	}
	*m = Metric(n.String())
	return nil
}

// String は表示用の文字列を返す。
func (m Metric) String() string {
	return string(m)
}
