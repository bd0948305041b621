package chain

import "encoding/json"

// ObjectOptions selects which parts of an object the node returns.
type ObjectOptions struct {
	ShowType    bool `json:"showType"`
	ShowContent bool `json:"showContent"`
	ShowOwner   bool `json:"showOwner,omitempty"`
}

// ObjectResponse is the result of sui_getObject.
type ObjectResponse struct {
	Data  *ObjectData  `json:"data,omitempty"`
	Error *ObjectError `json:"error,omitempty"`
}

// ObjectData holds the object payload.
type ObjectData struct {
	ObjectID string         `json:"objectId"`
	Version  string         `json:"version"`
	Digest   string         `json:"digest"`
	Type     string         `json:"type"`
	Content  *ObjectContent `json:"content,omitempty"`
}

// ObjectContent is the parsed Move struct of an object.
type ObjectContent struct {
	DataType string          `json:"dataType"`
	Type     string          `json:"type"`
	Fields   json.RawMessage `json:"fields"`
}

// ObjectError is returned in place of data for deleted or missing objects.
type ObjectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id,omitempty"`
}

// EventID is the pagination cursor for event queries.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// EventFilter narrows suix_queryEvents.
type EventFilter struct {
	MoveEventType string `json:"MoveEventType,omitempty"`
}

// Event is one emitted Move event.
type Event struct {
	ID                EventID         `json:"id"`
	PackageID         string          `json:"packageId"`
	TransactionModule string          `json:"transactionModule"`
	Sender            string          `json:"sender"`
	Type              string          `json:"type"`
	ParsedJSON        json.RawMessage `json:"parsedJson"`
	TimestampMs       string          `json:"timestampMs,omitempty"`
}

// EventPage is one page of suix_queryEvents.
type EventPage struct {
	Data        []Event  `json:"data"`
	NextCursor  *EventID `json:"nextCursor"`
	HasNextPage bool     `json:"hasNextPage"`
}

// ObjectFilter narrows suix_getOwnedObjects.
type ObjectFilter struct {
	StructType string `json:"StructType,omitempty"`
}

// OwnedObjectsQuery is the query argument of suix_getOwnedObjects.
type OwnedObjectsQuery struct {
	Filter  *ObjectFilter `json:"filter,omitempty"`
	Options ObjectOptions `json:"options"`
}

// ObjectPage is one page of suix_getOwnedObjects.
type ObjectPage struct {
	Data        []ObjectResponse `json:"data"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
}

// CoinMetadata is the result of suix_getCoinMetadata.
type CoinMetadata struct {
	Decimals    uint8  `json:"decimals"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
}
