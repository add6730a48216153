package signature_test

import (
	"errors"
	"testing"

	"github.com/okian/hookscore/internal/domain/signature"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVerifier(t *testing.T) {
	Convey("Given a verifier with a shared secret", t, func() {
		v := signature.NewVerifier("It's a Secret to Everybody")
		body := []byte("Hello, World!")

		Convey("When the header matches a digest of the exact body", func() {
			// Reference value from GitHub's webhook validation docs.
			header := "sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17"

			Convey("Then the delivery is accepted", func() {
				So(v.Verify(body, header), ShouldBeNil)
				So(v.Sign(body), ShouldEqual, header)
			})
		})

		Convey("When the body differs by a single byte", func() {
			header := v.Sign(body)
			err := v.Verify([]byte("Hello, World?"), header)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, signature.ErrInvalidSignature), ShouldBeTrue)
			})
		})

		Convey("When the body is re-serialized with different whitespace", func() {
			header := v.Sign([]byte(`{"a":1}`))
			err := v.Verify([]byte(`{"a": 1}`), header)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, signature.ErrInvalidSignature), ShouldBeTrue)
			})
		})

		Convey("When the header is missing", func() {
			So(errors.Is(v.Verify(body, ""), signature.ErrMissingSignature), ShouldBeTrue)
		})

		Convey("When the header has no sha256 prefix", func() {
			header := v.Sign(body)[len("sha256="):]
			So(errors.Is(v.Verify(body, header), signature.ErrInvalidSignature), ShouldBeTrue)
		})

		Convey("When the header is not hex", func() {
			So(errors.Is(v.Verify(body, "sha256=zz"), signature.ErrInvalidSignature), ShouldBeTrue)
		})

		Convey("When the header was signed with another secret", func() {
			other := signature.NewVerifier("another secret")
			So(errors.Is(v.Verify(body, other.Sign(body)), signature.ErrInvalidSignature), ShouldBeTrue)
		})
	})

	Convey("Given a verifier without a secret", t, func() {
		v := signature.NewVerifier("")

		Convey("Then every delivery is rejected", func() {
			err := v.Verify([]byte("x"), v.Sign([]byte("x")))
			So(errors.Is(err, signature.ErrMissingSecret), ShouldBeTrue)
		})
	})
}
