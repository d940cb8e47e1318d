package extraction

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/bead-tracker/internal/backend"
	"github.com/zombor/bead-tracker/internal/colorcode"
	"github.com/zombor/bead-tracker/internal/crop"
	"github.com/zombor/bead-tracker/internal/legend"
)

// multipartUpload builds a legend upload body with extra form fields
func multipartUpload(filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())

	for k, v := range fields {
		Expect(writer.WriteField(k, v)).To(Succeed())
	}
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

func decodeBody(resp *http.Response, v any) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, v)).To(Succeed())
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		extractor   *mockExtractor
		tracker     *mockBackend
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
		fixedTime   time.Time
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = newMockExtractor()
		tracker = &mockBackend{}
		auth = BasicAuth{}
		fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(db, extractor, storage, tracker, &mockIDGenerator{id: "ext-1"}, &mockTimeSource{now: fixedTime})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.Handler().ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	Describe("POST /api/extractions", func() {
		var (
			filename    string
			contentType string
			data        []byte
			fields      map[string]string
			resp        *http.Response
		)

		BeforeEach(func() {
			filename = "legend.png"
			contentType = "image/png"
			data = testPNG(100, 50)
			fields = nil
		})

		JustBeforeEach(func() {
			body, formType := multipartUpload(filename, contentType, data, fields)
			var err error
			resp, err = http.Post(ghttpServer.URL()+"/api/extractions", formType, body)
			Expect(err).NotTo(HaveOccurred())
		})

		When("the upload is a readable legend", func() {
			It("should return 201 with the colours and their swatches", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))

				var got struct {
					ID     string  `json:"id"`
					Colors []Color `json:"colors"`
				}
				decodeBody(resp, &got)
				Expect(got.ID).To(Equal("ext-1"))
				Expect(got.Colors).To(HaveLen(2))
				Expect(got.Colors[0].Code).To(Equal("A7"))
				Expect(got.Colors[0].Quantity).To(Equal(12))
				Expect(got.Colors[0].Hex).To(Equal(colorcode.Hex("A7")))
				Expect(got.Colors[0].TextColor).To(Equal(colorcode.ContrastColor(colorcode.Hex("A7"))))
			})
		})

		When("the part has no content type", func() {
			BeforeEach(func() {
				contentType = ""
			})

			It("should infer it from the extension", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(db.extractions["ext-1"].ContentType).To(Equal("image/png"))
			})
		})

		When("an automatic crop is requested", func() {
			BeforeEach(func() {
				fields = map[string]string{"crop": "auto"}
			})

			It("should store the crop", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(db.extractions["ext-1"].Crop).NotTo(BeNil())
			})
		})

		When("a display crop is sent", func() {
			BeforeEach(func() {
				fields = map[string]string{
					"crop":          `{"x":20,"y":10,"width":10,"height":5}`,
					"displayWidth":  "50",
					"displayHeight": "25",
				}
			})

			It("should crop in image pixels", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(db.extractions["ext-1"].Crop.Dx()).To(Equal(52))
			})
		})

		When("the crop is malformed", func() {
			BeforeEach(func() {
				fields = map[string]string{"crop": "{not json"}
			})

			It("should return 400", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(extractor.calls).To(BeZero())
			})
		})

		When("the display size is not a number", func() {
			BeforeEach(func() {
				fields = map[string]string{
					"crop":         `{"x":1,"y":1,"width":10,"height":10}`,
					"displayWidth": "wide",
				}
			})

			It("should return 400", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the file is not an image", func() {
			BeforeEach(func() {
				data = []byte("hello")
			})

			It("should return 400 with a JSON error", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				var got map[string]string
				decodeBody(resp, &got)
				Expect(got["error"]).To(ContainSubstring("invalid image"))
			})
		})

		When("the OCR engine fails", func() {
			BeforeEach(func() {
				extractor.err = &legend.EngineError{Pass: legend.PassNormal, Err: errors.New("boom")}
			})

			It("should return 502", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			})
		})

		When("storing fails", func() {
			BeforeEach(func() {
				storage.saveErr = errors.New("disk full")
			})

			It("should return 500", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("POST /api/extractions without a file", func() {
		It("should return 400", func() {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			Expect(writer.WriteField("crop", "auto")).To(Succeed())
			Expect(writer.Close()).To(Succeed())

			resp, err := http.Post(ghttpServer.URL()+"/api/extractions", writer.FormDataContentType(), body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("POST /api/extractions/debug", func() {
		It("should return both passes and store nothing", func() {
			body, formType := multipartUpload("legend.png", "image/png", testPNG(30, 30), nil)

			resp, err := http.Post(ghttpServer.URL()+"/api/extractions/debug", formType, body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got debugResponse
			decodeBody(resp, &got)
			Expect(got.Normal.RawText).To(Equal("A7 x12 B3"))
			Expect(got.Inverted.RawText).To(Equal("B3 (5)"))
			Expect(got.Colors).To(HaveLen(2))
			Expect(db.extractions).To(BeEmpty())
		})
	})

	Describe("GET /api/extractions", func() {
		When("extractions exist", func() {
			BeforeEach(func() {
				db.extractions["old"] = &Extraction{ID: "old", CreatedAt: fixedTime.Add(-time.Hour)}
				db.extractions["new"] = &Extraction{ID: "new", CreatedAt: fixedTime}
			})

			It("should return them newest first", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/extractions")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var got []Extraction
				decodeBody(resp, &got)
				Expect(got).To(HaveLen(2))
				Expect(got[0].ID).To(Equal("new"))
			})
		})

		When("no extractions exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/extractions")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("corrupt")
			})

			It("should return 500", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/extractions")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("GET /api/extractions/{id}", func() {
		BeforeEach(func() {
			db.extractions["a"] = &Extraction{ID: "a", Colors: []colorcode.Requirement{{Code: "H2", Quantity: 3}}}
		})

		It("should return the extraction", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/extractions/a")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got extractionResponse
			decodeBody(resp, &got)
			Expect(got.ID).To(Equal("a"))
			Expect(got.Colors).To(HaveLen(1))
			Expect(got.Colors[0].Hex).To(Equal(colorcode.Hex("H2")))
		})

		It("should return 404 for unknown IDs", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/extractions/missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("GET /api/extractions/{id}/file", func() {
		BeforeEach(func() {
			db.extractions["a"] = &Extraction{ID: "a", Filename: "a_legend.jpg", ContentType: "image/jpeg"}
			storage.files["a_legend.jpg"] = []byte("jpeg-bytes")
		})

		It("should return the file with its content type", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/extractions/a/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("jpeg-bytes")))
		})

		It("should return 404 for unknown IDs", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/extractions/missing/file")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("PUT /api/extractions/{id}/colors", func() {
		BeforeEach(func() {
			db.extractions["a"] = &Extraction{ID: "a"}
		})

		put := func(url, body string) *http.Response {
			req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("should store the cleaned list", func() {
			resp := put(ghttpServer.URL()+"/api/extractions/a/colors", `[{"code":"c02","quantity":4},{"code":"??","quantity":1}]`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()

			Expect(db.extractions["a"].Colors).To(Equal([]colorcode.Requirement{{Code: "C2", Quantity: 4}}))
		})

		It("should reject a body that is not a list", func() {
			resp := put(ghttpServer.URL()+"/api/extractions/a/colors", `{"code":"A1"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		It("should return 404 for unknown IDs", func() {
			resp := put(ghttpServer.URL()+"/api/extractions/missing/colors", `[]`)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("POST /api/extractions/{id}/apply", func() {
		var resp *http.Response

		BeforeEach(func() {
			db.extractions["a"] = &Extraction{ID: "a", Colors: []colorcode.Requirement{{Code: "A7", Quantity: 12}}}
		})

		apply := func(body string) {
			var err error
			resp, err = http.Post(ghttpServer.URL()+"/api/extractions/a/apply", "application/json", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
		}

		AfterEach(func() {
			resp.Body.Close()
		})

		It("should push the colours to the bead", func() {
			apply(`{"bead_id": 42}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(tracker.beadID).To(Equal(int64(42)))
			Expect(db.extractions["a"].BeadID).To(Equal(int64(42)))
		})

		It("should return 400 for a missing bead ID", func() {
			apply(`{}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should return 404 when the bead does not exist", func() {
			tracker.getErr = &backend.StatusError{StatusCode: 404, Body: "no such bead"}
			apply(`{"bead_id": 42}`)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return 502 when the tracker fails", func() {
			tracker.err = &backend.StatusError{StatusCode: 500, Body: "oops"}
			apply(`{"bead_id": 42}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("DELETE /api/extractions/{id}", func() {
		BeforeEach(func() {
			db.extractions["a"] = &Extraction{ID: "a", Filename: "a_legend.png"}
			storage.files["a_legend.png"] = []byte("png")
		})

		del := func(id string) *http.Response {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/extractions/"+id, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("should return 204 and remove the extraction", func() {
			resp := del("a")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()
			Expect(db.extractions).To(BeEmpty())
		})

		It("should return 404 for unknown IDs", func() {
			resp := del("missing")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("GET /api/palette", func() {
		It("should list every code with its swatch", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/palette")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got []paletteEntry
			decodeBody(resp, &got)
			Expect(got).To(HaveLen(len(colorcode.Codes())))
			Expect(got[0].Hex).NotTo(BeEmpty())
			Expect(got[0].TextColor).NotTo(BeEmpty())
		})
	})

	Describe("GET /api/palette/{code}", func() {
		It("should accept padded lower-case codes", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/palette/a07")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got paletteEntry
			decodeBody(resp, &got)
			Expect(got.Code).To(Equal("A7"))
			Expect(got.Hex).To(Equal("#FA8C4F"))
		})

		It("should return 404 for unknown codes", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/palette/Z99")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("POST /api/crop", func() {
		It("should return the adjusted selection", func() {
			body := `{"box":{"x":0,"y":0,"width":100,"height":100},"natural_width":200,"natural_height":100,"corner":"TL","nudge":{"x":-2,"y":0}}`
			resp, err := http.Post(ghttpServer.URL()+"/api/crop", "application/json", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got CropState
			decodeBody(resp, &got)
			Expect(got.Selection).To(Equal(crop.Rect{X: 8, Y: 30, Width: 82, Height: 40}))
			Expect(got.Corner).To(Equal("TL"))
		})

		It("should return 400 for an unusable preview", func() {
			body := `{"box":{"width":100,"height":100},"natural_width":0,"natural_height":100}`
			resp, err := http.Post(ghttpServer.URL()+"/api/crop", "application/json", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/extractions", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/extractions")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/extractions", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/extractions", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})

var _ = Describe("statusFor", func() {
	DescribeTable("mapping service errors",
		func(err error, expected int) {
			Expect(statusFor(err)).To(Equal(expected))
		},
		Entry("invalid image", legend.ErrInvalidImage, http.StatusBadRequest),
		Entry("invalid crop", ErrInvalidCrop, http.StatusBadRequest),
		Entry("not found", ErrNotFound, http.StatusNotFound),
		Entry("missing bead", fmt.Errorf("%w: 7", ErrBeadNotFound), http.StatusNotFound),
		Entry("crop off the image", fmt.Errorf("%w: %w", ErrInvalidCrop, crop.ErrOutsideImage), http.StatusBadRequest),
		Entry("engine failure", &legend.EngineError{Pass: "normal", Err: errors.New("x")}, http.StatusBadGateway),
		Entry("tracker failure", &backend.StatusError{StatusCode: 500}, http.StatusBadGateway),
		Entry("no tracker", ErrBackendUnavailable, http.StatusServiceUnavailable),
		Entry("anything else", errors.New("boom"), http.StatusInternalServerError),
	)
})
