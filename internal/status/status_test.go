package status

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusLabels(t *testing.T) {
	require.Equal(t, "Available", Available.String())
	require.Equal(t, "On Mission", OnMission.String())
	require.Equal(t, "Charging", Charging.String())
	require.Equal(t, "Maintenance", Maintenance.String())
	require.False(t, Status(0).Valid())
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Status{"status": OnMission})
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"On Mission"}`, string(data))

	var decoded struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"Charging"}`), &decoded))
	require.Equal(t, Charging, decoded.Status)

	require.Error(t, json.Unmarshal([]byte(`{"status":"Parked"}`), &decoded))

	_, err = json.Marshal(Status(9))
	require.Error(t, err)
}

func TestParseStatusAliases(t *testing.T) {
	for _, label := range []string{"On Mission", "on_mission", "OnMission"} {
		s, err := ParseStatus(label)
		require.NoError(t, err)
		require.Equal(t, OnMission, s)
	}
}

func TestEveryStatusHasPresentation(t *testing.T) {
	for _, s := range All {
		require.NotEmpty(t, s.Color(), s.String())
		require.NotEmpty(t, s.Severity(), s.String())
	}
}
