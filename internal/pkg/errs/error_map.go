/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrInvalidCursor:        {Code: ErrInvalidCursor, Message: "Invalid pagination cursor.", Status: http.StatusBadRequest},

	// 2xxx: Room, Conversation, and Message Business Logic Errors
	ErrRoomNotFound:             {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrRoomAccessDenied:         {Code: ErrRoomAccessDenied, Message: "You do not have access to this room.", Status: http.StatusForbidden},
	ErrConversationNotFound:     {Code: ErrConversationNotFound, Message: "Conversation not found.", Status: http.StatusNotFound},
	ErrConversationAccessDenied: {Code: ErrConversationAccessDenied, Message: "You do not have access to this conversation.", Status: http.StatusForbidden},
	ErrScopeRequired:            {Code: ErrScopeRequired, Message: "Exactly one of roomId or conversationId is required.", Status: http.StatusBadRequest},
	ErrEmptyMessage:             {Code: ErrEmptyMessage, Message: "Message must have text or attachments.", Status: http.StatusBadRequest},
	ErrMessageContentTooLong:    {Code: ErrMessageContentTooLong, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrAttachmentCountInvalid:   {Code: ErrAttachmentCountInvalid, Message: "A message may carry at most %d attachments.", Status: http.StatusBadRequest},
	ErrAttachmentKeyInvalid:     {Code: ErrAttachmentKeyInvalid, Message: "Invalid attachment.", Status: http.StatusBadRequest},
	ErrMessageNotFound:          {Code: ErrMessageNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrFileSizeTooLarge:         {Code: ErrFileSizeTooLarge, Message: "File is too large.", Status: http.StatusBadRequest},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized: {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrForbidden:    {Code: ErrForbidden, Message: "You are not allowed to do that.", Status: http.StatusForbidden},
	ErrUserNotFound: {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrPersistence:       {Code: ErrPersistence, Message: "Message could not be saved. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},
}
