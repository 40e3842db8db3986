// Package submit implements the form submission pipeline shared by the
// careers, job application, contact and order forms.
//
// # Flow
//
// Every submission runs the same ordered steps, each of which may end it:
//
//  1. Validate: required fields, email format, lengths and the attachment
//     rule. Nothing leaves the process when validation fails.
//  2. Enrich: a human-readable timestamp and the job title or product name.
//  3. Upload: the attachment, if any, goes to the Uploader. A failure ends
//     the submission before anything is sent.
//  4. Compose: the attachment link is appended to the form's free-text field.
//  5. Send: the Transport delivers the message. There is no retry.
//  6. Report: a Result for the page. Only a delivered submission clears the
//     form; every failure keeps the visitor's input.
//
// # States
//
//	Idle -> Validating -> Rejected
//	                   -> Enriching -> Uploading -> UploadFailed
//	                                             -> Composing
//	                                -> Composing -> Sending -> SendFailed
//	                                                        -> Delivered
//	Idle -> Busy
//
// Every outcome returns to Idle once reported. Observers see each step.
package submit
