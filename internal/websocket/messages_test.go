package websocket

import (
	"encoding/json"
	"testing"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"
)

func TestParseControlMessageConnect(t *testing.T) {
	msg, err := ParseControlMessage([]byte(`{"type":"connect","profile_id":"japanese","voice_name":"Kore"}`))
	if err != nil {
		t.Fatalf("ParseControlMessage failed: %v", err)
	}
	if msg.Type != MessageTypeConnect {
		t.Errorf("unexpected type %s", msg.Type)
	}
	if msg.ProfileID != "japanese" || msg.VoiceName != "Kore" {
		t.Errorf("unexpected fields: %+v", msg)
	}
}

func TestParseControlMessageConnectRequiresProfile(t *testing.T) {
	if _, err := ParseControlMessage([]byte(`{"type":"connect"}`)); err == nil {
		t.Error("connect without profile_id should fail")
	}
}

func TestParseControlMessageDisconnect(t *testing.T) {
	msg, err := ParseControlMessage([]byte(`{"type":"disconnect"}`))
	if err != nil {
		t.Fatalf("ParseControlMessage failed: %v", err)
	}
	if msg.Type != MessageTypeDisconnect {
		t.Errorf("unexpected type %s", msg.Type)
	}
}

func TestParseControlMessageRejectsUnknown(t *testing.T) {
	if _, err := ParseControlMessage([]byte(`{"type":"reboot"}`)); err == nil {
		t.Error("unknown type should fail")
	}
	if _, err := ParseControlMessage([]byte(`{}`)); err == nil {
		t.Error("missing type should fail")
	}
	if _, err := ParseControlMessage([]byte(`not json`)); err == nil {
		t.Error("malformed JSON should fail")
	}
}

func TestStateMessageSerialization(t *testing.T) {
	payload, err := json.Marshal(NewStateMessage(entities.ConnectionStateError, "Authentication failed. Please check your API key."))
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != "state" || decoded["state"] != "ERROR" {
		t.Errorf("unexpected payload: %v", decoded)
	}
	if decoded["error"] != "Authentication failed. Please check your API key." {
		t.Errorf("error message lost: %v", decoded["error"])
	}
	if decoded["timestamp"] == "" {
		t.Error("timestamp missing")
	}
}

func TestVolumeMessageOmitsNothing(t *testing.T) {
	payload, err := json.Marshal(NewVolumeMessage(entities.VolumeState{Input: 0.5}))
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Volume entities.VolumeState `json:"volume"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Volume.Input != 0.5 || decoded.Volume.Output != 0 {
		t.Errorf("unexpected volume: %+v", decoded.Volume)
	}
}
