// internal/websocket/utils.go
package websocket

import (
	"encoding/json"

	wstypes "policy-service/internal/domain/websocket"
)

// MapToStruct converts a decoded message payload into target using JSON marshaling
func MapToStruct(data interface{}, target interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}

func knownChannel(channel wstypes.ChannelType) bool {
	switch channel {
	case wstypes.ChannelPolicies, wstypes.ChannelSystem:
		return true
	}
	return false
}
