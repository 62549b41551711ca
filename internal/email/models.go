package email

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// PaymentConfirmation is the data rendered into the payment confirmation email
type PaymentConfirmation struct {
	To            string
	CustomerName  string
	InvoiceNumber string
	Amount        string
	PaidAt        string
}
