package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/wesm/regcat/internal/query"
)

// ServiceErrorMessage is the only text a client ever sees for a data-store
// failure. The underlying cause stays in the server log.
const ServiceErrorMessage = "A server error occurred. Please contact the system administrator."

// Kind classifies a failed response.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindServiceError Kind = "service_error"
)

// Request is either a search (IsSearch, Criteria) or a detail lookup (ClassID).
type Request struct {
	IsSearch bool
	Criteria query.SearchCriteria
	ClassID  int64
}

// SearchRequest returns a search request for c.
func SearchRequest(c query.SearchCriteria) Request {
	return Request{IsSearch: true, Criteria: c}
}

// DetailRequest returns a detail request for classID.
func DetailRequest(classID int64) Request {
	return Request{ClassID: classID}
}

func (r Request) String() string {
	if r.IsSearch {
		return "search " + r.Criteria.String()
	}
	return fmt.Sprintf("detail %d", r.ClassID)
}

// Failure describes why a request could not be answered.
type Failure struct {
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// Response is the server's answer. Exactly one of Summaries/Detail (on
// success) or Failure (otherwise) is meaningful; which payload a success
// carries is implied by the request sent on the same connection.
type Response struct {
	Success   bool
	Summaries []query.ClassSummary
	Detail    *query.ClassDetail
	Failure   *Failure
}

// SearchSuccess wraps search results.
func SearchSuccess(rows []query.ClassSummary) Response {
	if rows == nil {
		rows = []query.ClassSummary{}
	}
	return Response{Success: true, Summaries: rows}
}

// DetailSuccess wraps a detail record.
func DetailSuccess(d *query.ClassDetail) Response {
	return Response{Success: true, Detail: d}
}

// FailureResponse builds a failed response.
func FailureResponse(kind Kind, message string) Response {
	return Response{Failure: &Failure{Message: message, Kind: kind}}
}

// WriteRequest writes req and flushes once.
func WriteRequest(w io.Writer, req Request) error {
	enc := NewEncoder(w)
	if err := enc.Encode(TagIsSearch, req.IsSearch); err != nil {
		return err
	}
	var err error
	if req.IsSearch {
		err = enc.Encode(TagCriteria, req.Criteria)
	} else {
		err = enc.Encode(TagClassID, req.ClassID)
	}
	if err != nil {
		return err
	}
	return enc.Flush()
}

// ReadRequest reads one request.
func ReadRequest(r io.Reader) (Request, error) {
	dec := NewDecoder(r)
	var req Request
	if err := dec.Decode(TagIsSearch, &req.IsSearch); err != nil {
		return Request{}, err
	}
	if req.IsSearch {
		if err := dec.Decode(TagCriteria, &req.Criteria); err != nil {
			return Request{}, err
		}
		return req, nil
	}
	if err := dec.Decode(TagClassID, &req.ClassID); err != nil {
		return Request{}, err
	}
	return req, nil
}

// ErrNoPayload is wrapped by ProtocolError when a successful response carries
// neither summaries nor a detail.
var ErrNoPayload = errors.New("success response has no payload")

// WriteResponse writes resp and flushes once. A successful response must
// carry the payload matching its request. A *ProtocolError return means the
// response was refused before anything reached w.
func WriteResponse(w io.Writer, resp Response) error {
	if resp.Success && resp.Detail == nil && resp.Summaries == nil {
		return &ProtocolError{Op: "encode response", Err: ErrNoPayload}
	}

	enc := NewEncoder(w)
	if err := enc.Encode(TagSuccess, resp.Success); err != nil {
		return err
	}

	var err error
	switch {
	case !resp.Success:
		f := resp.Failure
		if f == nil {
			f = &Failure{Message: ServiceErrorMessage, Kind: KindServiceError}
		}
		err = enc.Encode(TagFailure, f)
	case resp.Detail != nil:
		err = enc.Encode(TagDetail, resp.Detail)
	default:
		err = enc.Encode(TagSummaries, resp.Summaries)
	}
	if err != nil {
		return err
	}
	return enc.Flush()
}

// ReadSearchResponse reads the response to a search request.
func ReadSearchResponse(r io.Reader) (Response, error) {
	return readResponse(r, func(dec *Decoder, resp *Response) error {
		if err := dec.Decode(TagSummaries, &resp.Summaries); err != nil {
			return err
		}
		if resp.Summaries == nil {
			resp.Summaries = []query.ClassSummary{}
		}
		return nil
	})
}

// ReadDetailResponse reads the response to a detail request.
func ReadDetailResponse(r io.Reader) (Response, error) {
	return readResponse(r, func(dec *Decoder, resp *Response) error {
		resp.Detail = &query.ClassDetail{}
		return dec.Decode(TagDetail, resp.Detail)
	})
}

func readResponse(r io.Reader, readPayload func(*Decoder, *Response) error) (Response, error) {
	dec := NewDecoder(r)
	var resp Response
	if err := dec.Decode(TagSuccess, &resp.Success); err != nil {
		return Response{}, err
	}
	if !resp.Success {
		resp.Failure = &Failure{}
		if err := dec.Decode(TagFailure, resp.Failure); err != nil {
			return Response{}, err
		}
		return resp, nil
	}
	if err := readPayload(dec, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
