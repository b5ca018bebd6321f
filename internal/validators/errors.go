package validators

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrNoRoot               = errors.New("database has no root group")
	ErrNullUUID             = errors.New("object has a null UUID")
	ErrHistoryUUIDMismatch  = errors.New("history item UUID does not match entry")
	ErrNestedHistory        = errors.New("history item has its own history")
	ErrInvalidColor         = errors.New("invalid color")
	ErrEmptyAttributeKey    = errors.New("attribute key is empty")
	ErrEmptyAttachmentName  = errors.New("attachment name is empty")
	ErrUnknownCustomIcon    = errors.New("custom icon is not defined")
	ErrDuplicateCustomIcon  = errors.New("custom icon is defined twice")
	ErrUnknownRecycleBin    = errors.New("recycle bin group does not exist")
	ErrInvalidHistoryBounds = errors.New("invalid history bounds")
	ErrInvalidTombstone     = errors.New("invalid deleted object")
)
