package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmitAttemptRequest_UnmarshalJSON(t *testing.T) {
	body := `{
		"answers": {"q1": "B", "q2": 3, "q3": null, "q4": ["A"], "q5": ""},
		"video_submitted": {"v1": true, "v2": "on", "v3": "YES ", "v4": "off", "v5": 1, "v6": false, "v7": null}
	}`

	var req SubmitAttemptRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	require.Equal(t, map[string]string{"q1": "B", "q5": ""}, req.Answers)
	require.Equal(t, map[string]bool{"v1": true, "v2": true, "v3": true, "v6": false}, req.VideoSubmitted)
}

func TestSubmitAttemptRequest_UnmarshalJSON_EmptyBody(t *testing.T) {
	var req SubmitAttemptRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &req))
	require.NotNil(t, req.Answers)
	require.Empty(t, req.Answers)
	require.Empty(t, req.VideoSubmitted)

	require.Error(t, json.Unmarshal([]byte(`{"answers": "B"}`), &req))
}
