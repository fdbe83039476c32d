/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients, over HTTP
and over the realtime socket protocol alike.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005

	// ErrInvalidCursor indicates that the "before" pagination cursor could not be parsed as a timestamp.
	ErrInvalidCursor = 1006
)

// 2xxx: Room, Conversation, and Message Business Logic Errors
const (
	// ErrRoomNotFound indicates that the named room does not exist.
	ErrRoomNotFound = 2101

	// ErrRoomAccessDenied indicates that the caller is not a member of the room or is banned from it.
	ErrRoomAccessDenied = 2102

	// ErrConversationNotFound indicates that the named conversation does not exist.
	ErrConversationNotFound = 2103

	// ErrConversationAccessDenied indicates that the caller is not a member of the conversation.
	ErrConversationAccessDenied = 2104

	// ErrScopeRequired indicates that a message or event named neither a room nor a conversation,
	// or named both at once. Exactly one scope is required.
	ErrScopeRequired = 2201

	// ErrEmptyMessage indicates a message with no text content and no attachments.
	ErrEmptyMessage = 2202

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2203

	// ErrAttachmentCountInvalid indicates an unacceptable number of attachments on a message.
	ErrAttachmentCountInvalid = 2204

	// ErrAttachmentKeyInvalid indicates an attachment key outside the sender's channel scope.
	ErrAttachmentKeyInvalid = 2205

	// ErrMessageNotFound indicates that the named message does not exist.
	ErrMessageNotFound = 2206

	// ErrFileSizeTooLarge indicates that an attachment exceeded the maximum file size.
	ErrFileSizeTooLarge = 2207
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing, invalid, or expired bearer credential.
	ErrUnauthorized = 3001

	// ErrForbidden indicates the authenticated user lacks the role required for the operation.
	ErrForbidden = 3002

	// ErrUserNotFound indicates the referenced user account does not exist.
	ErrUserNotFound = 3003
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrPersistence indicates that a message could not be durably stored.
	ErrPersistence = 5001

	// ErrFileStorageFailed indicates that a presigned URL could not be produced.
	ErrFileStorageFailed = 5002
)
