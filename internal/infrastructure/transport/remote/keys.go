package remote

import "fmt"

// Redis key patterns:
// {prefix}:presence:rooms          SET<room_id>            - rooms holding presence records
// {prefix}:room:{room_id}:presence HASH<client_id, json>   - presence records
// {prefix}:room:{room_id}:messages HASH<message_id, json>  - message log
// {prefix}:room:{room_id}:typing   STRING<json>            - typing indicator slot
type keyspace string

func (k keyspace) presenceRooms() string {
	return fmt.Sprintf("%s:presence:rooms", k)
}

func (k keyspace) presence(roomID string) string {
	return fmt.Sprintf("%s:room:%s:presence", k, roomID)
}

func (k keyspace) messages(roomID string) string {
	return fmt.Sprintf("%s:room:%s:messages", k, roomID)
}

func (k keyspace) typing(roomID string) string {
	return fmt.Sprintf("%s:room:%s:typing", k, roomID)
}
