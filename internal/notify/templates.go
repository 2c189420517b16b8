// Mail body builders. Bodies are small HTML fragments rendered with
// html/template so user-supplied values are escaped before they reach a mail
// client.
package notify

import (
	"html/template"
	"strings"
)

var bookingUserTmpl = template.Must(template.New("bookingUser").Parse(`
<div style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #4A90E2;">Appointment Confirmed</h2>
    <p>Dear {{.Name}},</p>
    <p>Thank you for booking a consultation with Vallit. Your appointment has been successfully scheduled.</p>

    <div style="background-color: #f5f5f5; padding: 15px; border-radius: 8px; margin: 20px 0;">
        <p><strong>Topic:</strong> {{.Topic}}</p>
        <p><strong>Date:</strong> {{.Date}}</p>
        <p><strong>Time:</strong> {{.Time}}</p>
        <p><strong>Meeting Link:</strong> <a href="{{.ZoomLink}}">{{.ZoomLink}}</a></p>
    </div>

    <p>A calendar invitation has also been sent to your email.</p>
    <p>Best regards,<br>The Vallit Team</p>
</div>
`))

var bookingAdminTmpl = template.Must(template.New("bookingAdmin").Parse(`
<h2>New Booking Received</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Company:</strong> {{.Company}}</p>
<p><strong>Topic:</strong> {{.Topic}}</p>
<p><strong>Date:</strong> {{.Date}} at {{.Time}}</p>
<br>
<p>This booking was submitted through the Vallit website.</p>
`))

var contactAdminTmpl = template.Must(template.New("contactAdmin").Parse(`
<h2>New Contact Form Submission</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Company:</strong> {{.Company}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Team Size:</strong> {{.TeamSize}}</p>
<p><strong>Interest:</strong> {{.Interest}}</p>
<br>
<p><strong>Message:</strong></p>
<blockquote style="background: #f5f5f5; padding: 10px; border-left: 4px solid #4A90E2;">
    {{.Message}}
</blockquote>
`))

var contactUserTmpl = template.Must(template.New("contactUser").Parse(`
<p>Hi {{.Name}},</p>
<p>Thanks for reaching out to Vallit! We've received your inquiry and will get back to you shortly.</p>
<br>
<p>Best,<br>The Vallit Team</p>
`))

var dataRequestAdminTmpl = template.Must(template.New("dataRequestAdmin").Parse(`
<h2>New Data Request</h2>
<p><strong>Type:</strong> {{.Type}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Request ID:</strong> {{.RequestID}}</p>
<p>Please review the database and process this request manually or via the admin dashboard.</p>
`))

var dataRequestUserTmpl = template.Must(template.New("dataRequestUser").Parse(`
<p>Dear User,</p>
<p>We have received your request to <strong>{{.Verb}}</strong> your personal data associated with this email address.</p>
<p>Reference ID: {{.RequestID}}</p>
<p>We will process your request within 30 days as required by GDPR regulations and notify you once completed.</p>
<p>Best regards,<br>The Vallit Team</p>
`))

// BookingData carries the fields rendered into booking mails.
type BookingData struct {
	Name     string
	Email    string
	Company  string
	Topic    string
	Date     string
	Time     string
	ZoomLink string
}

// BookingUserBody renders the visitor-facing booking confirmation.
func BookingUserBody(d BookingData) string { return render(bookingUserTmpl, d) }

// BookingAdminBody renders the admin copy of a booking.
func BookingAdminBody(d BookingData) string { return render(bookingAdminTmpl, d) }

// ContactData carries the fields rendered into contact mails.
type ContactData struct {
	Name     string
	Company  string
	Email    string
	TeamSize string
	Interest string
	Message  template.HTML
}

// ContactAdminBody renders the lead notification for the admin inbox. The
// free-text message has its newlines converted to <br> after escaping.
func ContactAdminBody(d ContactData) string { return render(contactAdminTmpl, d) }

// ContactUserBody renders the visitor-facing receipt confirmation.
func ContactUserBody(d ContactData) string { return render(contactUserTmpl, d) }

// DataRequestData carries the fields rendered into GDPR request mails.
type DataRequestData struct {
	Type      string
	Verb      string // "access" or "delete"
	Email     string
	RequestID string
}

// DataRequestAdminBody renders the admin notification for a GDPR request.
func DataRequestAdminBody(d DataRequestData) string { return render(dataRequestAdminTmpl, d) }

// DataRequestUserBody renders the requester's confirmation.
func DataRequestUserBody(d DataRequestData) string { return render(dataRequestUserTmpl, d) }

// MultilineHTML escapes free text and preserves line breaks for HTML bodies.
func MultilineHTML(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

func render(t *template.Template, data any) string {
	var b strings.Builder
	// Templates are static and the data types match; an execute error here
	// would be a programming bug, so fall back to an empty body.
	_ = t.Execute(&b, data)
	return b.String()
}
