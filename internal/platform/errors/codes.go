// Package errors provides structured error handling with i18n support.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Generic request errors
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"

	// Dice errors
	CodeDiceInvalidRoll  Code = "DICE_INVALID_ROLL"
	CodeDiceRollTooLarge Code = "DICE_ROLL_TOO_LARGE"

	// Registration errors
	CodeUserInvalidUsername     Code = "USER_INVALID_USERNAME"
	CodeUserInvalidEmail        Code = "USER_INVALID_EMAIL"
	CodeUserPasswordTooShort    Code = "USER_PASSWORD_TOO_SHORT"
	CodeUserUsernameTaken       Code = "USER_USERNAME_TAKEN"
	CodeUserEmailTaken          Code = "USER_EMAIL_TAKEN"
	CodeUserInactive            Code = "USER_INACTIVE"
	CodeUserInvalidCredentials  Code = "USER_INVALID_CREDENTIALS"
	CodeUserAlreadyActive       Code = "USER_ALREADY_ACTIVE"
	CodeTokenInvalid            Code = "TOKEN_INVALID"
	CodeTokenExpired            Code = "TOKEN_EXPIRED"
	CodeProfileInvalidLanguage  Code = "PROFILE_INVALID_LANGUAGE"
	CodeProfileInvalidAlias     Code = "PROFILE_INVALID_ALIAS"
	CodeProfileInvalidWeb       Code = "PROFILE_INVALID_WEB"
	CodeDiscordAccountNotLinked Code = "DISCORD_ACCOUNT_NOT_LINKED"

	// Roleplay errors
	CodeDomainInvalidName         Code = "DOMAIN_INVALID_NAME"
	CodeDomainInvalidType         Code = "DOMAIN_INVALID_TYPE"
	CodePlaceInvalidName          Code = "PLACE_INVALID_NAME"
	CodePlaceInvalidSiteType      Code = "PLACE_INVALID_SITE_TYPE"
	CodePlacePrivateWithoutOwner  Code = "PLACE_PRIVATE_WITHOUT_OWNER"
	CodePlaceInvalidParent        Code = "PLACE_INVALID_PARENT"
	CodeRaceInvalidName           Code = "RACE_INVALID_NAME"
	CodeCampaignInvalidName       Code = "CAMPAIGN_INVALID_NAME"
	CodeCampaignInvalidResume     Code = "CAMPAIGN_INVALID_RESUME"
	CodeCampaignInvalidSystem     Code = "CAMPAIGN_INVALID_SYSTEM"
	CodeCampaignPlaceNotWorld     Code = "CAMPAIGN_PLACE_NOT_WORLD"
	CodeCampaignInvalidDates      Code = "CAMPAIGN_INVALID_DATES"
	CodeCampaignAlreadyPlayer     Code = "CAMPAIGN_ALREADY_PLAYER"
	CodeCampaignNameRequired      Code = "CAMPAIGN_NAME_REQUIRED"
	CodeSessionInvalidName        Code = "SESSION_INVALID_NAME"
	CodeSessionInvalidPlot        Code = "SESSION_INVALID_PLOT"
	CodeInvitationNoEmails        Code = "INVITATION_NO_EMAILS"
	CodeInvitationEmailMismatch   Code = "INVITATION_EMAIL_MISMATCH"

	// Chat errors
	CodeChatInvalidName    Code = "CHAT_INVALID_NAME"
	CodeChatInvalidBody    Code = "CHAT_INVALID_BODY"
	CodeChatNotMember      Code = "CHAT_NOT_MEMBER"
	CodeChatAuthorMismatch Code = "CHAT_AUTHOR_MISMATCH"

	// Common errors
	CodeTrackInvalidName  Code = "TRACK_INVALID_NAME"
	CodeFileTooLarge      Code = "FILE_TOO_LARGE"
	CodeFileNotAudio      Code = "FILE_NOT_AUDIO"
	CodeVoteUnknownTarget Code = "VOTE_UNKNOWN_TARGET"

	// Menu errors
	CodeMenuInvalidName Code = "MENU_INVALID_NAME"
	CodeMenuInvalidType Code = "MENU_INVALID_TYPE"
	CodeMenuInvalidTree Code = "MENU_INVALID_TREE"

	// Discord errors
	CodeDiscordAPI Code = "DISCORD_API"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidArgument,
		CodeDiceInvalidRoll,
		CodeDiceRollTooLarge,
		CodeUserInvalidUsername,
		CodeUserInvalidEmail,
		CodeUserPasswordTooShort,
		CodeTokenInvalid,
		CodeProfileInvalidLanguage,
		CodeProfileInvalidAlias,
		CodeProfileInvalidWeb,
		CodeDomainInvalidName,
		CodeDomainInvalidType,
		CodePlaceInvalidName,
		CodePlaceInvalidSiteType,
		CodePlacePrivateWithoutOwner,
		CodePlaceInvalidParent,
		CodeRaceInvalidName,
		CodeCampaignInvalidName,
		CodeCampaignInvalidResume,
		CodeCampaignInvalidSystem,
		CodeCampaignPlaceNotWorld,
		CodeCampaignInvalidDates,
		CodeCampaignNameRequired,
		CodeSessionInvalidName,
		CodeSessionInvalidPlot,
		CodeInvitationNoEmails,
		CodeChatInvalidName,
		CodeChatInvalidBody,
		CodeChatAuthorMismatch,
		CodeTrackInvalidName,
		CodeFileTooLarge,
		CodeFileNotAudio,
		CodeMenuInvalidName,
		CodeMenuInvalidType,
		CodeMenuInvalidTree:
		return codes.InvalidArgument

	// Unauthenticated - missing or bad credentials
	case CodeUnauthenticated,
		CodeUserInvalidCredentials,
		CodeTokenExpired:
		return codes.Unauthenticated

	// PermissionDenied - caller lacks rights
	case CodePermissionDenied,
		CodeChatNotMember,
		CodeInvitationEmailMismatch:
		return codes.PermissionDenied

	// FailedPrecondition - state doesn't allow operation
	case CodeUserInactive,
		CodeUserAlreadyActive,
		CodeDiscordAccountNotLinked:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeVoteUnknownTarget:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeAlreadyExists,
		CodeUserUsernameTaken,
		CodeUserEmailTaken,
		CodeCampaignAlreadyPlayer:
		return codes.AlreadyExists

	case CodeDiscordAPI:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	return httpStatusFromGRPC(c.GRPCCode())
}

func httpStatusFromGRPC(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
